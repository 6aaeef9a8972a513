package dsl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everydev1618/swarm"
)

func TestBlackboardLibrary(t *testing.T) {
	k := swarm.NewKnowledge()
	lib := swarm.NewLibraries()
	lib.Register(BlackboardModule, blackboardLibrary(k))
	ctx := context.Background()

	k.Queue("jobs").Push(int64(1))
	k.Queue("jobs").Push(int64(2))

	n, err := lib.Call(ctx, []string{"blackboard", "pending"}, []any{"jobs"}, swarm.LibraryContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = lib.Call(ctx, []string{"blackboard", "pending"}, []any{"empty"}, swarm.LibraryContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = lib.Call(ctx, []string{"blackboard", "close"}, []any{"jobs"}, swarm.LibraryContext{})
	require.NoError(t, err)

	// Buffered values drain before the close is observed.
	v, err := k.Queue("jobs").Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestBlackboardBadArguments(t *testing.T) {
	lib := swarm.NewLibraries()
	lib.Register(BlackboardModule, blackboardLibrary(swarm.NewKnowledge()))

	for _, args := range [][]any{nil, {int64(1)}, {""}, {"a", "b"}} {
		_, err := lib.Call(context.Background(), []string{"blackboard", "pending"}, args, swarm.LibraryContext{})
		assert.ErrorIs(t, err, swarm.ErrBadArgument, "args %v", args)
	}
}

func TestBlackboardClosedQueueFailsGet(t *testing.T) {
	src := `
Import blackboard;
Action drain() { blackboard.close("jobs"); get job from ##jobs##; }
Agent drone { drain; }
Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { drain(); } } }
Main { Agent drone 1; t({drone[0~1]}); }
`
	_, _, err := runProgram(t, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedToken)
	assert.ErrorIs(t, err, swarm.ErrQueueClosed)
}
