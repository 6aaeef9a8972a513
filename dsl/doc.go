// Package dsl implements Swarm-DSL, a small language for programming swarms
// of vehicles as agents that share a knowledge blackboard.
//
// # Language Overview
//
// A program declares, in this order:
//
//   - Imports: library modules reachable through dotted names (math.sqrt(2))
//   - Actions: sequential procedures; calls to unknown names inside an
//     Action are capabilities of the vehicle provider
//   - Agents: classes of swarm participants and the Actions they may perform
//   - Behaviors and Tasks: goal-driven routines with parallel branches
//   - Main: binds agent counts and runs Tasks over agent ranges
//
// # Basic Example
//
//	Import sys
//
//	Action lift(h) {
//	    takeOff();
//	    flyToHeight(h);
//	}
//
//	Agent drone { lift; }
//
//	Task survey({drone[s~e]}) {
//	    init { n = 0; }
//	    goal { $ n >= 1 }
//	    routine {
//	        each drone[s~e] { lift(5); }
//	        n = n + 1;
//	    }
//	}
//
//	Main {
//	    Agent drone 3;
//	    survey({drone[0~3]});
//	}
//
// # Behaviors and Tasks
//
// A Behavior or Task call runs its init block once, then starts one goroutine
// per routine branch (branches are separated by ||). Each branch runs its body,
// then evaluates the goal against the call's shared record. The first branch
// to see the goal hold stops the instance; the others finish their current
// iteration and stop. A return statement in a branch also stops the instance.
// The call returns after every branch has stopped.
//
// order agent[a~b] { ... } runs its calls for each id in turn on the calling
// goroutine. each agent[a~b] { ... } runs them for every id at once, each with
// its own clone of the vehicle provider, and waits for all of them.
//
// # Knowledge
//
// put and get move values through the blackboard:
//
//	put x to #target#;     // locked cell
//	get y from #target#;
//	put job to ##jobs##;   // FIFO queue, get blocks until an item arrives
//
// A block locks the cells it touches directly before running, in sorted key
// order, so blocks sharing keys cannot deadlock.
//
// # Running Programs
//
//	caps := swarm.NewCapabilities()
//	swarm.RegisterSimCapabilities(caps)
//
//	interp, err := dsl.Run(ctx, src,
//	    dsl.WithProvider(swarm.NewSimProvider()),
//	    dsl.WithCapabilities(caps),
//	)
//
// Run stops at the first failing stage. Errors are *Error values rendered as
// "<CODE> -> <token>":
//
//	var e *dsl.Error
//	if errors.As(err, &e) {
//	    fmt.Println(e.Stage, e.Code, e.Token.Line)
//	}
package dsl
