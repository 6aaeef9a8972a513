package dsl

import (
	"context"
	"fmt"

	"github.com/everydev1618/swarm"
)

// BlackboardModule is the library name under which the knowledge queues of a
// run are exposed to programs that import it.
const BlackboardModule = "blackboard"

// blackboardLibrary exposes queue inspection to programs. Cells are reached
// through put/get only, since a library call cannot see which locks the
// calling block holds.
func blackboardLibrary(k *swarm.Knowledge) map[string]any {
	return map[string]any{
		"pending": swarm.LibraryFunc(func(_ context.Context, args []any, _ swarm.LibraryContext) (any, error) {
			key, err := queueKey("pending", args)
			if err != nil {
				return nil, err
			}
			return int64(k.Queue(key).Len()), nil
		}),
		"close": swarm.LibraryFunc(func(_ context.Context, args []any, _ swarm.LibraryContext) (any, error) {
			key, err := queueKey("close", args)
			if err != nil {
				return nil, err
			}
			k.Queue(key).Close()
			return nil, nil
		}),
	}
}

func queueKey(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: blackboard.%s expects a queue name", swarm.ErrBadArgument, name)
	}
	key, ok := args[0].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: blackboard.%s expects a queue name", swarm.ErrBadArgument, name)
	}
	return key, nil
}
