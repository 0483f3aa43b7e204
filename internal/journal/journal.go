package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tanho/flume/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on actions.kind
const currentSchemaVersion = 1

// Journal is a durable, append-only action log backed by SQLite.
// It implements engine.Sink so it can be wired into a store with
// engine.WithJournal.
type Journal struct {
	db   *sql.DB
	corr func() string
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithCorrelation overrides the correlation id generator. The default is
// UUIDv7, time-sortable for debugging; tests pin a fixed sequence for
// deterministic records.
func WithCorrelation(gen func() string) JournalOption {
	return func(j *Journal) { j.corr = gen }
}

// Open creates or opens a journal database at the given path
// (":memory:" for tests). Applies required pragmas and migrations
// automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string, opts ...JournalOption) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; limit connections to
	// avoid SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{
		db:   db,
		corr: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append implements engine.Sink: it persists one dispatch record. Called
// by the store before the snapshot swap, so the log never lags the state.
func (j *Journal) Append(e engine.Entry) error {
	return j.AppendContext(context.Background(), e)
}

// AppendContext persists one dispatch record with context control.
//
// The record id is content-addressed over (kind, payload, seq); a payload
// that cannot be canonically marshaled rejects the append - and with it
// the dispatch - rather than producing an unverifiable log.
func (j *Journal) AppendContext(ctx context.Context, e engine.Entry) error {
	payload, err := MarshalCanonical(e.Payload)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}

	// Hash over the decoded form of the canonical payload so Verify can
	// recompute the id from the stored text alone.
	decoded, err := decodePayload(payload)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}
	id, err := RecordID(e.Kind, decoded, e.Seq)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO actions (seq, id, kind, payload, ts, correlation)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		id,
		e.Kind,
		string(payload),
		e.Time.UnixMilli(),
		j.corr(),
	)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}
	return nil
}

// LastSeq returns the highest seq in the journal, 0 when empty. Used to
// resume a store's clock with engine.NewClockAt after rehydration.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// Len returns the number of records.
func (j *Journal) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("len: %w", err)
	}
	return n, nil
}

// Stats returns the record count per action kind.
func (j *Journal) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM actions GROUP BY kind ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on
// user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the kind index for databases created before v1.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_actions_kind ON actions(kind)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
