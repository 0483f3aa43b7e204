package engine

// Snapshot is one immutable generation of the state tree: a mapping from
// slice name to slice value, stamped with the logical seq it committed at.
//
// Snapshots are never mutated after construction. A dispatch that changes
// nothing reuses the previous Snapshot pointer, which is what makes the
// selector graph's invalidation check a pointer comparison. Callers may
// retain a Snapshot indefinitely; it will never change underneath them.
type Snapshot struct {
	seq    int64
	slices map[string]any
	order  []string // registration order, shared across generations
}

// Seq returns the logical clock value this snapshot committed at.
// The initial snapshot has seq 0.
func (s *Snapshot) Seq() int64 {
	return s.seq
}

// Slice returns the value of the named slice and whether it is registered.
func (s *Snapshot) Slice(name string) (any, bool) {
	v, ok := s.slices[name]
	return v, ok
}

// Slices returns the registered slice names in registration order.
// The returned slice is a copy and safe to mutate.
func (s *Snapshot) Slices() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// next builds the successor snapshot. Unchanged slices share their values
// with the previous generation (structural sharing).
func (s *Snapshot) next(seq int64, slices map[string]any) *Snapshot {
	return &Snapshot{
		seq:    seq,
		slices: slices,
		order:  s.order,
	}
}
