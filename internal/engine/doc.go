// Package engine implements the flume state container core.
//
// The engine holds a single immutable state tree partitioned into named
// slices. Every change flows through Dispatch: an Action is applied by the
// composed slice reducers, the store swaps in a fresh snapshot, and
// subscribers plus registered observers are notified synchronously before
// Dispatch returns.
//
// ARCHITECTURE:
//
// Single-Writer Dispatch:
// Only one dispatch is in progress at any time. Dispatches from different
// goroutines serialize on an internal lock; a dispatch issued from inside a
// reducer or a synchronous subscriber callback is a structural bug and fails
// fast with ErrCodeReentrantDispatch instead of deadlocking or being queued.
//
// Dispatch Flow:
//  1. Re-entrancy check, then acquire the dispatch lock
//  2. Run every slice reducer in declaration order
//  3. If nothing changed, keep the identical snapshot pointer
//  4. Otherwise append to the journal sink (if configured) and swap
//  5. Notify subscribers (distinct-until-changed), then observers
//
// Reducers are synchronous, total, and never perform I/O. Asynchronous work
// lives in effect observers (see internal/effect), which re-enter the bus by
// dispatching follow-up actions from their own goroutines on later cycles.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Snapshots and journal entries are stamped with a monotonic seq counter
// from Clock.Next(). Wall-clock time is never used for ordering.
//
// Deterministic Reduction:
// Slice reducers run in registration order. Replaying the same action
// sequence from the same initial snapshot produces a deeply equal final
// state.
package engine
