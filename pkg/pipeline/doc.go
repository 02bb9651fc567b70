// Package pipeline runs an ordered chain of stages around a single terminal
// handler.
//
// Stages compose as nested calls rather than a queue: the code a stage runs
// before calling next executes on the way in (outermost first), and the code
// after next returns executes on the way out (outermost last). A stage that
// returns without calling next short-circuits every downstream stage,
// including the terminal handler, while the stages already entered still
// unwind normally.
//
// # Basic Usage
//
//	timer := pipeline.Stage[*Exchange]{
//	    Name: "timer",
//	    Run: func(x *Exchange, next pipeline.Next) error {
//	        start := time.Now()
//	        err := next()
//	        x.Elapsed = time.Since(start)
//	        return err
//	    },
//	}
//
//	engine := pipeline.New(callUpstream, timer, cache, headers)
//	if err := engine.Execute(x); err != nil {
//	    return err
//	}
//
// The stage list is fixed at construction. An Engine holds no per-execution
// state, so one Engine may run any number of executions concurrently as long
// as each execution owns its own value of C.
package pipeline
