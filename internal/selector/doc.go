// Package selector implements the dependency-aware memoization layer over
// state snapshots.
//
// A selector is a pure derivation over one or more upstream values - raw
// state slices or other selectors - with its dependencies declared
// explicitly at construction. Each node caches its last-seen inputs and
// last-computed output; a read re-derives the value only when some input
// differs by identity (engine.Same) from the cached inputs.
//
// Composite selectors form a DAG. Reads are pull-based: a node evaluates
// its dependencies first, then checks its own cache, so a node recomputes
// at most once per distinct change to any transitive dependency no matter
// how many times it is read. Evaluation order is the declared dependency
// order, which keeps recomputation deterministic.
//
// Parameterized selectors are built through a Factory, which keeps a
// bounded LRU cache of nodes keyed by argument so transient parameter
// values cannot grow the graph without bound.
//
// Selector compute functions must be pure and must not dispatch.
package selector
