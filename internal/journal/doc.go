// Package journal provides the durable, replayable action log.
//
// Every committed dispatch appends one record: the engine seq, the action
// kind, the payload as canonical JSON, an informational wall timestamp,
// and a UUIDv7 correlation id. Records carry a content-addressed SHA-256
// id computed over (kind, payload, seq), so a log can be verified offline:
// same record content always produces the same id.
//
// Replay streams records in seq order; Rehydrate dispatches them through a
// fresh store to reproduce a deeply equal final state (the
// deterministic-replay contract). Replayed payloads are decoded from JSON,
// so replayable stores must use JSON-round-trippable payloads.
//
// Storage is SQLite with WAL mode for concurrent read access during
// writes. The schema is embedded and migrations run automatically on Open.
package journal
