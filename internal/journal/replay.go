package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/tanho/flume/internal/engine"
)

// Replay returns all records ordered by seq ascending.
func (j *Journal) Replay(ctx context.Context) ([]Record, error) {
	var out []Record
	err := j.ReplayFunc(ctx, func(r Record) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplayFunc streams records in seq order without loading the whole log
// into memory. A non-nil error from fn aborts the scan.
func (j *Journal) ReplayFunc(ctx context.Context, fn func(Record) error) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, kind, payload, ts, correlation
		FROM actions
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		var payload string
		var ts int64
		if err := rows.Scan(&r.Seq, &r.ID, &r.Kind, &payload, &ts, &r.Correlation); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		r.Payload = []byte(payload)
		r.Time = time.UnixMilli(ts).UTC()
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Rehydrate builds a fresh store over the given registry and dispatches
// every journal record through it in seq order. The rebuilt store's state
// is deeply equal to the state the original store held after its last
// committed dispatch, and its clock resumes past the journal's last seq
// so new dispatches never collide with replayed ones.
//
// The rebuilt store has no sink wired; pass engine options to attach one,
// a logger, or observers.
func Rehydrate(ctx context.Context, j *Journal, reg *engine.Registry, opts ...engine.Option) (*engine.Store, error) {
	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("rehydrate: %w", err)
	}

	opts = append(opts, engine.WithClock(engine.NewClockAt(last)))
	store := engine.New(reg, opts...)

	err = j.ReplayFunc(ctx, func(r Record) error {
		act, err := r.Action()
		if err != nil {
			return err
		}
		if err := store.Dispatch(act); err != nil {
			return fmt.Errorf("rehydrate seq %d: %w", r.Seq, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
