package swarm

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesRegister(t *testing.T) {
	c := NewCapabilities()
	echo := func(_ context.Context, call Call) (any, error) { return call.Args[0], nil }

	require.NoError(t, c.RegisterFunc("echo", echo))
	err := c.RegisterFunc("echo", echo)
	assert.ErrorIs(t, err, ErrCapabilityAlreadyRegistered)

	require.NoError(t, c.RegisterFunc("alpha", echo))
	assert.True(t, c.Has("echo"))
	assert.False(t, c.Has("missing"))
	assert.Equal(t, []string{"alpha", "echo"}, c.Names())
}

func TestCapabilitiesInvoke(t *testing.T) {
	c := NewCapabilities()
	require.NoError(t, c.RegisterFunc("echo", func(_ context.Context, call Call) (any, error) {
		return call.Vehicle + ":" + FormatValue(call.Args[0]), nil
	}))
	require.NoError(t, c.RegisterFunc("broken", func(context.Context, Call) (any, error) {
		return nil, ErrBadArgument
	}))

	v, err := c.Invoke(context.Background(), Call{Name: "echo", Args: []any{int64(4)}, Vehicle: "drone_1"})
	require.NoError(t, err)
	assert.Equal(t, "drone_1:4", v)

	_, err = c.Invoke(context.Background(), Call{Name: "nope", Vehicle: "drone_1"})
	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "nope", ce.Name)
	assert.Equal(t, "drone_1", ce.Vehicle)
	assert.ErrorIs(t, err, ErrCapabilityNotFound)

	_, err = c.Invoke(context.Background(), Call{Name: "broken"})
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestCapabilitiesMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) CapabilityMiddleware {
		return func(next Capability) Capability {
			return CapabilityFunc(func(ctx context.Context, call Call) (any, error) {
				order = append(order, name)
				return next.Invoke(ctx, call)
			})
		}
	}

	c := NewCapabilities(WithMiddleware(tag("outer")))
	c.Use(tag("inner"))
	require.NoError(t, c.RegisterFunc("noop", func(context.Context, Call) (any, error) {
		order = append(order, "call")
		return nil, nil
	}))

	_, err := c.Invoke(context.Background(), Call{Name: "noop"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "call"}, order)
}

func TestLogCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewCapabilities(WithMiddleware(LogCalls(logger)))
	require.NoError(t, c.RegisterFunc("ok", func(context.Context, Call) (any, error) { return nil, nil }))
	require.NoError(t, c.RegisterFunc("bad", func(context.Context, Call) (any, error) { return nil, ErrVehicleNotFound }))

	_, _ = c.Invoke(context.Background(), Call{Name: "ok", Vehicle: "drone_0"})
	_, _ = c.Invoke(context.Background(), Call{Name: "bad", Vehicle: "drone_1"})

	out := buf.String()
	assert.Contains(t, out, "capability invoked")
	assert.Contains(t, out, "capability=ok")
	assert.Contains(t, out, "capability failed")
	assert.Contains(t, out, "vehicle=drone_1")
}
