package swarm

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Provider is the handle to a fleet of real or simulated vehicles.
// Clone must return an independent handle so agents running in parallel
// never share device or session state.
type Provider interface {
	SetHome(ctx context.Context, vehicles []string) error
	Clone() Provider
}

// Call describes one capability invocation.
type Call struct {
	Name     string
	Args     []any
	Vehicle  string
	Provider Provider
}

// Capability is a named operation the interpreter can invoke on a vehicle.
type Capability interface {
	Invoke(ctx context.Context, call Call) (any, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, call Call) (any, error)

// Invoke calls f.
func (f CapabilityFunc) Invoke(ctx context.Context, call Call) (any, error) {
	return f(ctx, call)
}

// CapabilityMiddleware wraps capability execution.
type CapabilityMiddleware func(Capability) Capability

// CapabilitiesOption configures Capabilities.
type CapabilitiesOption func(*Capabilities)

// Capabilities is the registry of invocable capabilities.
type Capabilities struct {
	caps       map[string]Capability
	middleware []CapabilityMiddleware
	mu         sync.RWMutex
}

// NewCapabilities creates an empty registry.
func NewCapabilities(opts ...CapabilitiesOption) *Capabilities {
	c := &Capabilities{
		caps: make(map[string]Capability),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithMiddleware installs middleware at construction time.
func WithMiddleware(mw ...CapabilityMiddleware) CapabilitiesOption {
	return func(c *Capabilities) {
		c.middleware = append(c.middleware, mw...)
	}
}

// Register adds a capability under name.
func (c *Capabilities) Register(name string, capability Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.caps[name]; exists {
		return &CapabilityError{Name: name, Err: ErrCapabilityAlreadyRegistered}
	}
	c.caps[name] = capability
	return nil
}

// RegisterFunc adds a function capability under name.
func (c *Capabilities) RegisterFunc(name string, fn func(ctx context.Context, call Call) (any, error)) error {
	return c.Register(name, CapabilityFunc(fn))
}

// Use adds middleware to the invocation chain.
func (c *Capabilities) Use(mw CapabilityMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw)
}

// Has reports whether name is registered.
func (c *Capabilities) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.caps[name]
	return ok
}

// Names returns the registered names, sorted.
func (c *Capabilities) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.caps))
	for name := range c.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the capability named by call.Name through the middleware chain.
func (c *Capabilities) Invoke(ctx context.Context, call Call) (any, error) {
	c.mu.RLock()
	capability, ok := c.caps[call.Name]
	middleware := c.middleware
	c.mu.RUnlock()

	if !ok {
		return nil, &CapabilityError{Name: call.Name, Vehicle: call.Vehicle, Err: ErrCapabilityNotFound}
	}

	// Apply middleware (in reverse order)
	for i := len(middleware) - 1; i >= 0; i-- {
		capability = middleware[i](capability)
	}

	result, err := capability.Invoke(ctx, call)
	if err != nil {
		return nil, &CapabilityError{Name: call.Name, Vehicle: call.Vehicle, Err: err}
	}
	return result, nil
}

// LogCalls returns middleware that logs every invocation at debug level.
func LogCalls(logger *slog.Logger) CapabilityMiddleware {
	return func(next Capability) Capability {
		return CapabilityFunc(func(ctx context.Context, call Call) (any, error) {
			start := time.Now()
			result, err := next.Invoke(ctx, call)
			if err != nil {
				logger.Warn("capability failed",
					"capability", call.Name,
					"vehicle", call.Vehicle,
					"error", err)
				return result, err
			}
			logger.Debug("capability invoked",
				"capability", call.Name,
				"vehicle", call.Vehicle,
				"duration", time.Since(start))
			return result, nil
		})
	}
}
