// Package harness provides a YAML scenario runner for the engine.
//
// A scenario declares initial slice values, a sequence of actions to
// dispatch, and assertions over the resulting journal trace and final
// state. The harness drives the real engine: each declared slice gets a
// merge reducer handling "set/<slice>" actions, every dispatch goes
// through a real store wired to an in-memory journal, and the trace is
// read back from the journal rather than fabricated.
//
// Determinism is total: a fixed wall clock and sequential correlation
// ids make the trace byte-identical across runs, so golden snapshot
// comparison (RunWithGolden) is exact.
package harness
