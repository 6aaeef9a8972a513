package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// ErrNoOverview is returned when a cloned provider asks for the overview camera.
var ErrNoOverview = errors.New("overview camera is not available on cloned providers")

// Position is a vehicle location in simulator coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%s, %s, %s)", FormatValue(p.X), FormatValue(p.Y), FormatValue(p.Z))
}

// JournalEntry records one simulated capability call.
type JournalEntry struct {
	Vehicle    string    `json:"vehicle"`
	Capability string    `json:"capability"`
	Detail     string    `json:"detail"`
	At         time.Time `json:"at"`
}

// Journal is the append-only log of simulated calls, shared by a provider
// and all of its clones.
type Journal struct {
	mu      sync.Mutex
	entries []JournalEntry
	echo    io.Writer
}

// NewJournal creates a journal that also writes each entry to echo when non-nil.
func NewJournal(echo io.Writer) *Journal {
	return &Journal{echo: echo}
}

// Record appends an entry.
func (j *Journal) Record(vehicle, capability, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, JournalEntry{
		Vehicle:    vehicle,
		Capability: capability,
		Detail:     detail,
		At:         time.Now(),
	})
	if j.echo != nil {
		fmt.Fprintf(j.echo, "%s : %s, %s\n", capability, vehicle, detail)
	}
}

// Entries returns a copy of the journal.
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Overview is the single top-level camera. Only the provider that created it
// holds it; clones never do.
type Overview struct {
	mu       sync.Mutex
	pictures int
}

// SimProvider is an in-memory simulated fleet.
type SimProvider struct {
	mu        sync.Mutex
	home      map[string]Position
	locations map[string]Position
	payload   map[string]int
	pictures  map[string]int
	groups    int

	spacing  float64
	height   float64
	latency  time.Duration
	journal  *Journal
	overview *Overview
}

// SimOption configures a SimProvider.
type SimOption func(*SimProvider)

// WithSpacing sets the distance between home positions of one group.
func WithSpacing(d float64) SimOption {
	return func(s *SimProvider) {
		s.spacing = d
	}
}

// WithTakeOffHeight sets the altitude reached by takeOff.
func WithTakeOffHeight(h float64) SimOption {
	return func(s *SimProvider) {
		s.height = h
	}
}

// WithLatency delays every simulated call.
func WithLatency(d time.Duration) SimOption {
	return func(s *SimProvider) {
		s.latency = d
	}
}

// WithJournal sets the shared journal.
func WithJournal(j *Journal) SimOption {
	return func(s *SimProvider) {
		s.journal = j
	}
}

// NewSimProvider creates a simulated fleet with an overview camera.
func NewSimProvider(opts ...SimOption) *SimProvider {
	s := &SimProvider{
		home:      make(map[string]Position),
		locations: make(map[string]Position),
		payload:   make(map[string]int),
		pictures:  make(map[string]int),
		spacing:   2,
		height:    2,
		overview:  &Overview{},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = NewJournal(nil)
	}

	return s
}

// SetHome places vehicles in a new group row, one spacing apart.
func (s *SimProvider) SetHome(ctx context.Context, vehicles []string) error {
	s.mu.Lock()
	group := float64(s.groups)
	s.groups++
	for i, v := range vehicles {
		p := Position{X: group * s.spacing, Y: float64(i) * s.spacing}
		s.home[v] = p
		s.locations[v] = p
	}
	s.mu.Unlock()

	for _, v := range vehicles {
		s.journal.Record(v, "setHome", s.mustPosition(v).String())
	}
	return ctx.Err()
}

// Clone deep-copies vehicle state. The journal is shared and the overview
// camera is not carried over.
func (s *SimProvider) Clone() Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &SimProvider{
		home:      make(map[string]Position, len(s.home)),
		locations: make(map[string]Position, len(s.locations)),
		payload:   make(map[string]int, len(s.payload)),
		pictures:  make(map[string]int, len(s.pictures)),
		groups:    s.groups,
		spacing:   s.spacing,
		height:    s.height,
		latency:   s.latency,
		journal:   s.journal,
	}
	for k, v := range s.home {
		c.home[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.payload {
		c.payload[k] = v
	}
	for k, v := range s.pictures {
		c.pictures[k] = v
	}
	return c
}

// Journal returns the shared journal.
func (s *SimProvider) Journal() *Journal {
	return s.journal
}

// Position returns the current location of vehicle.
func (s *SimProvider) Position(vehicle string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.locations[vehicle]
	return p, ok
}

// Vehicles returns the known vehicle names, sorted.
func (s *SimProvider) Vehicles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.locations))
	for name := range s.locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *SimProvider) mustPosition(vehicle string) Position {
	p, _ := s.Position(vehicle)
	return p
}

func (s *SimProvider) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// move applies fn to the vehicle's location and journals the transition.
func (s *SimProvider) move(ctx context.Context, call Call, fn func(Position) Position) (any, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	from, ok := s.locations[call.Vehicle]
	if !ok {
		s.mu.Unlock()
		return nil, ErrVehicleNotFound
	}
	to := fn(from)
	s.locations[call.Vehicle] = to
	s.mu.Unlock()
	s.journal.Record(call.Vehicle, call.Name, from.String()+"->"+to.String())
	return nil, nil
}

func simProvider(call Call) (*SimProvider, error) {
	s, ok := call.Provider.(*SimProvider)
	if !ok || s == nil {
		return nil, ErrProviderMismatch
	}
	return s, nil
}

func argFloat(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArgument, i+1)
	}
	f, ok := ToFloat(args[i])
	if !ok {
		return 0, fmt.Errorf("%w: argument %d is not a number", ErrBadArgument, i+1)
	}
	return f, nil
}

// argPoint accepts either a point value [x, y(, z)] at i or two numbers at i and i+1.
func argPoint(args []any, i int) (float64, float64, error) {
	if i < len(args) {
		if pt, ok := args[i].([]any); ok {
			if len(pt) < 2 {
				return 0, 0, fmt.Errorf("%w: point needs two coordinates", ErrBadArgument)
			}
			x, okx := ToFloat(pt[0])
			y, oky := ToFloat(pt[1])
			if !okx || !oky {
				return 0, 0, fmt.Errorf("%w: point coordinates must be numbers", ErrBadArgument)
			}
			return x, y, nil
		}
	}
	x, err := argFloat(args, i)
	if err != nil {
		return 0, 0, err
	}
	y, err := argFloat(args, i+1)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

type simFunc func(ctx context.Context, s *SimProvider, call Call) (any, error)

func simCapability(fn simFunc) Capability {
	return CapabilityFunc(func(ctx context.Context, call Call) (any, error) {
		s, err := simProvider(call)
		if err != nil {
			return nil, err
		}
		return fn(ctx, s, call)
	})
}

// RegisterSimCapabilities installs the simulated fleet's capabilities.
func RegisterSimCapabilities(c *Capabilities) error {
	caps := map[string]simFunc{
		"takeOff": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			return s.move(ctx, call, func(p Position) Position {
				p.Z = s.height
				return p
			})
		},
		"land": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			return s.move(ctx, call, func(p Position) Position {
				p.Z = 0
				return p
			})
		},
		"flyToHeight": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			h, err := argFloat(call.Args, 0)
			if err != nil {
				return nil, err
			}
			return s.move(ctx, call, func(p Position) Position {
				p.Z = h
				return p
			})
		},
		"flyTo": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			x, y, err := argPoint(call.Args, 0)
			if err != nil {
				return nil, err
			}
			return s.move(ctx, call, func(p Position) Position {
				p.X, p.Y = x, y
				return p
			})
		},
		"goHome": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			s.mu.Lock()
			home, ok := s.home[call.Vehicle]
			s.mu.Unlock()
			if !ok {
				return nil, ErrVehicleNotFound
			}
			return s.move(ctx, call, func(p Position) Position {
				return Position{X: home.X, Y: home.Y, Z: p.Z}
			})
		},
		"flyCircle": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			radius, err := argFloat(call.Args, len(call.Args)-1)
			if err != nil {
				return nil, err
			}
			if radius <= 0 {
				return nil, fmt.Errorf("%w: radius must be positive", ErrBadArgument)
			}
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			if _, ok := s.Position(call.Vehicle); !ok {
				return nil, ErrVehicleNotFound
			}
			s.journal.Record(call.Vehicle, call.Name, "radius = "+FormatValue(radius))
			return nil, nil
		},
		"getPosition": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			p, ok := s.Position(call.Vehicle)
			if !ok {
				return nil, ErrVehicleNotFound
			}
			s.journal.Record(call.Vehicle, call.Name, p.String())
			return []any{p.X, p.Y}, nil
		},
		"getHeight": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			p, ok := s.Position(call.Vehicle)
			if !ok {
				return nil, ErrVehicleNotFound
			}
			return p.Z, nil
		},
		"distanceTo": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			x, y, err := argPoint(call.Args, 0)
			if err != nil {
				return nil, err
			}
			p, ok := s.Position(call.Vehicle)
			if !ok {
				return nil, ErrVehicleNotFound
			}
			return math.Hypot(p.X-x, p.Y-y), nil
		},
		"takePicture": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			s.mu.Lock()
			p, ok := s.locations[call.Vehicle]
			if !ok {
				s.mu.Unlock()
				return nil, ErrVehicleNotFound
			}
			s.pictures[call.Vehicle]++
			n := s.pictures[call.Vehicle]
			s.mu.Unlock()
			s.journal.Record(call.Vehicle, call.Name, p.String())
			return int64(n), nil
		},
		"pickUp": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			s.mu.Lock()
			if _, ok := s.locations[call.Vehicle]; !ok {
				s.mu.Unlock()
				return nil, ErrVehicleNotFound
			}
			s.payload[call.Vehicle]++
			n := s.payload[call.Vehicle]
			s.mu.Unlock()
			s.journal.Record(call.Vehicle, call.Name, "payload = "+FormatValue(int64(n)))
			return int64(n), nil
		},
		"overview": func(ctx context.Context, s *SimProvider, call Call) (any, error) {
			if s.overview == nil {
				return nil, ErrNoOverview
			}
			s.overview.mu.Lock()
			s.overview.pictures++
			s.overview.mu.Unlock()

			var out []any
			for _, v := range s.Vehicles() {
				p := s.mustPosition(v)
				out = append(out, []any{v, p.X, p.Y, p.Z})
			}
			s.journal.Record("overview", call.Name, fmt.Sprintf("%d vehicles", len(out)))
			return out, nil
		},
	}

	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.Register(name, simCapability(caps[name])); err != nil {
			return err
		}
	}
	return nil
}
