package swarm

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simFleet(t *testing.T, opts ...SimOption) (*SimProvider, *Capabilities) {
	t.Helper()
	s := NewSimProvider(opts...)
	c := NewCapabilities()
	require.NoError(t, RegisterSimCapabilities(c))
	require.NoError(t, s.SetHome(context.Background(), []string{"drone_0", "drone_1"}))
	return s, c
}

func TestSimSetHome(t *testing.T) {
	s, _ := simFleet(t, WithSpacing(3))
	require.NoError(t, s.SetHome(context.Background(), []string{"car_0"}))

	p, ok := s.Position("drone_1")
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 3}, p)

	p, _ = s.Position("car_0")
	assert.Equal(t, Position{X: 3, Y: 0}, p, "each SetHome call starts a new row")

	assert.Equal(t, []string{"car_0", "drone_0", "drone_1"}, s.Vehicles())
	assert.Equal(t, "setHome", s.Journal().Entries()[0].Capability)
}

func TestSimMovement(t *testing.T) {
	s, c := simFleet(t, WithTakeOffHeight(4))
	ctx := context.Background()
	invoke := func(name string, args ...any) any {
		t.Helper()
		v, err := c.Invoke(ctx, Call{Name: name, Args: args, Vehicle: "drone_0", Provider: s})
		require.NoError(t, err, name)
		return v
	}

	invoke("takeOff")
	assert.Equal(t, 4.0, invoke("getHeight"))

	invoke("flyToHeight", int64(10))
	invoke("flyTo", []any{int64(3), int64(4)})
	p, _ := s.Position("drone_0")
	assert.Equal(t, Position{X: 3, Y: 4, Z: 10}, p)
	assert.Equal(t, []any{3.0, 4.0}, invoke("getPosition"))
	assert.Equal(t, 5.0, invoke("distanceTo", int64(0), int64(0)))

	invoke("goHome")
	invoke("land")
	p, _ = s.Position("drone_0")
	assert.Equal(t, Position{}, p)

	assert.Equal(t, int64(1), invoke("takePicture"))
	assert.Equal(t, int64(2), invoke("takePicture"))
	assert.Equal(t, int64(1), invoke("pickUp"))
}

func TestSimErrors(t *testing.T) {
	s, c := simFleet(t)
	ctx := context.Background()

	_, err := c.Invoke(ctx, Call{Name: "takeOff", Vehicle: "ghost_0", Provider: s})
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	_, err = c.Invoke(ctx, Call{Name: "flyToHeight", Args: []any{"high"}, Vehicle: "drone_0", Provider: s})
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = c.Invoke(ctx, Call{Name: "flyCircle", Args: []any{int64(0)}, Vehicle: "drone_0", Provider: s})
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = c.Invoke(ctx, Call{Name: "takeOff", Vehicle: "drone_0"})
	assert.ErrorIs(t, err, ErrProviderMismatch)
}

func TestSimCloneIsolation(t *testing.T) {
	s, c := simFleet(t)
	ctx := context.Background()
	clone := s.Clone()

	_, err := c.Invoke(ctx, Call{Name: "takeOff", Vehicle: "drone_0", Provider: clone})
	require.NoError(t, err)

	p, _ := s.Position("drone_0")
	assert.Zero(t, p.Z, "the original is untouched")
	cp, _ := clone.(*SimProvider).Position("drone_0")
	assert.Equal(t, 2.0, cp.Z)

	assert.Same(t, s.Journal(), clone.(*SimProvider).Journal())

	_, err = c.Invoke(ctx, Call{Name: "overview", Provider: clone})
	assert.ErrorIs(t, err, ErrNoOverview)

	v, err := c.Invoke(ctx, Call{Name: "overview", Provider: s})
	require.NoError(t, err)
	assert.Len(t, v, 2)
}

func TestSimLatencyHonoursContext(t *testing.T) {
	s, c := simFleet(t, WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Invoke(ctx, Call{Name: "takeOff", Vehicle: "drone_0", Provider: s})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJournalEcho(t *testing.T) {
	var buf bytes.Buffer
	s := NewSimProvider(WithJournal(NewJournal(&buf)))
	require.NoError(t, s.SetHome(context.Background(), []string{"drone_0"}))

	assert.True(t, strings.HasPrefix(buf.String(), "setHome : drone_0, (0, 0, 0)"))
}
