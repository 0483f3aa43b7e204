// Package effect implements the asynchronous side of the flume engine:
// long-lived effects that observe the committed action stream, perform
// asynchronous work, and feed follow-up actions back into the bus.
//
// An effect declares an action predicate, a work function, a concurrency
// strategy, and a recovery policy. The orchestrator registers itself as a
// store observer; reducers stay synchronous and pure while every
// suspension point lives here.
//
// Concurrency strategies govern overlapping invocations of one effect:
//
//   - Serialize: queue new triggers; one invocation at a time, start and
//     completion order both follow trigger order
//   - Concurrent: every trigger starts immediately and runs independently
//   - Supersede: cancel the in-flight invocation; only the latest
//     invocation's result is observable
//   - IgnoreWhileBusy: drop the trigger while an invocation is
//     outstanding (drops are counted and logged, never silent)
//
// Each invocation moves Idle -> Active -> {Completed, Cancelled, Errored}
// -> Idle. An errored invocation applies the effect's recovery policy -
// retry with backoff, then emit the designated failure action (default) or
// drop - and never terminates the orchestrator or other effects.
//
// Follow-up actions are dispatched from orchestrator goroutines, never
// from within the triggering dispatch, so they always observe the state at
// their own dispatch time.
package effect
