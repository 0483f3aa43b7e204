package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tanho/flume/internal/engine"
)

// DomainAction is the domain prefix for content-addressed record ids.
// The version suffix enables future algorithm migration.
const DomainAction = "flume/action/v1"

// Record is one persisted entry of the action log.
type Record struct {
	// ID is the content-addressed SHA-256 of (kind, payload, seq).
	ID string

	// Seq is the engine logical clock value for the dispatch. Strictly
	// increasing within a journal; the only ordering key.
	Seq int64

	// Kind is the action discriminator.
	Kind string

	// Payload is the action payload as canonical JSON ("null" when the
	// action carried none).
	Payload []byte

	// Time is the wall time of the dispatch. Informational only.
	Time time.Time

	// Correlation is a UUIDv7 stamped at append time, time-sortable for
	// debugging and trace visualization.
	Correlation string
}

// Action reconstructs the dispatched action, decoding the payload from
// JSON. Numbers decode as float64 per encoding/json.
func (r Record) Action() (engine.Action, error) {
	payload, err := decodePayload(r.Payload)
	if err != nil {
		return engine.Action{}, fmt.Errorf("record seq %d: %w", r.Seq, err)
	}
	return engine.Action{Kind: r.Kind, Payload: payload}, nil
}

func decodePayload(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// RecordID computes the content-addressed id for a record. The id is
// stable across restarts and replays given the same inputs. Returns an
// error if the payload cannot be canonically marshaled.
func RecordID(kind string, payload any, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"kind":    kind,
		"payload": payload,
		"seq":     seq,
	})
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(kind string, payload any, seq int64) string {
	id, err := RecordID(kind, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
