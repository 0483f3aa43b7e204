package engine

import "time"

// Action is an immutable change-intent record. Kind is the stable
// discriminator; Payload shape is keyed by Kind and is opaque to the engine.
// Actions must never be mutated after creation.
type Action struct {
	Kind    string
	Payload any
}

// Entry is one record of the replayable action log: the dispatched action
// plus the seq it committed at. Time is informational only - ordering is
// always by Seq.
type Entry struct {
	Seq     int64
	Kind    string
	Payload any
	Time    time.Time
}

// Sink receives one Entry per successful dispatch. Implemented by
// journal.Journal for durable logs and by in-memory recorders in tests.
//
// Append is called before the snapshot swap: a sink error aborts the
// dispatch without committing, so the log never lags the state.
type Sink interface {
	Append(Entry) error
}
