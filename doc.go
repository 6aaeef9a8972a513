// Package swarm provides the runtime primitives behind the Swarm-DSL interpreter.
//
// Swarm-DSL coordinates collections of autonomous agents (drones, rovers, simulated
// vehicles) through declaratively defined Agents, Actions, Behaviors and Tasks. The
// language front end and the tree-walking interpreter live in the dsl package; this
// package holds the pieces they run on:
//
//   - A call-stack tree of activation records, one node per concurrently running branch
//   - The knowledge blackboard with lazily created per-key locks and FIFO queues
//   - Ordered multi-key locking (LockSet) to keep compound statements deadlock free
//   - The capability registry and the Provider interface for vehicle bindings
//   - A simulated fleet provider used by tests and the CLI
//   - Library modules (math, sys, geo) resolvable by dotted path
//   - Configuration, run events and knowledge persistence
//
// # Quick Start
//
// Run a program end to end:
//
//	caps := swarm.NewCapabilities()
//	swarm.RegisterSimCapabilities(caps)
//
//	err := dsl.Run(ctx, src,
//	    dsl.WithProvider(swarm.NewSimProvider()),
//	    dsl.WithCapabilities(caps),
//	)
//
// # Knowledge
//
// Agents coordinate through keyed knowledge stored on the root activation record:
//
//	k := swarm.NewKnowledge()
//	set := swarm.NewLockSet(k, "b", "a") // locks "a" then "b"
//	set.Lock()
//	k.StoreLocked("a", int64(1))
//	set.Unlock()
//
// # Providers
//
// A Provider is the handle to real or simulated vehicles. Each parallel agent gets
// its own Clone, so device and session state never leaks between agents.
package swarm
