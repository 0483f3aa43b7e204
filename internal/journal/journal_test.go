package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanho/flume/internal/engine"
	"github.com/tanho/flume/internal/testutil"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", WithCorrelation(testutil.SequentialCorrelation("test")))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func entryAt(seq int64, kind string, payload any) engine.Entry {
	return engine.Entry{
		Seq:     seq,
		Kind:    kind,
		Payload: payload,
		Time:    testutil.Epoch.Add(time.Duration(seq) * time.Second),
	}
}

func TestJournal_AppendAndReplay(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(entryAt(1, "login/request", map[string]any{"username": "ada"})))
	require.NoError(t, j.Append(entryAt(2, "tick", nil)))
	require.NoError(t, j.Append(entryAt(3, "login/success", map[string]any{"user": "ada"})))

	records, err := j.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, int64(1), records[0].Seq)
	assert.Equal(t, "login/request", records[0].Kind)
	assert.Equal(t, `{"username":"ada"}`, string(records[0].Payload))
	assert.Equal(t, "test-000001", records[0].Correlation)
	assert.Equal(t, testutil.Epoch.Add(time.Second), records[0].Time)

	assert.Equal(t, "null", string(records[1].Payload))
	assert.Equal(t, "test-000003", records[2].Correlation)

	// Stored ids match the content address.
	assert.Equal(t,
		MustRecordID("tick", nil, 2),
		records[1].ID,
	)

	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	n, err := j.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestJournal_RecordActionDecodesPayload(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(entryAt(1, "cart/add", map[string]any{"qty": 2, "sku": "x1"})))

	records, err := j.Replay(context.Background())
	require.NoError(t, err)
	act, err := records[0].Action()
	require.NoError(t, err)

	assert.Equal(t, "cart/add", act.Kind)
	payload := act.Payload.(map[string]any)
	assert.Equal(t, "x1", payload["sku"])
	assert.Equal(t, float64(2), payload["qty"], "JSON numbers decode as float64")
}

func TestJournal_AppendRejectsUnsupportedPayload(t *testing.T) {
	j := openTestJournal(t)

	err := j.Append(entryAt(1, "bad", make(chan int)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestJournal_DuplicateSeqRejected(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(entryAt(1, "a", nil)))
	assert.Error(t, j.Append(entryAt(1, "b", nil)), "seq is the primary key")
}

func TestJournal_Stats(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(entryAt(1, "inc", nil)))
	require.NoError(t, j.Append(entryAt(2, "inc", nil)))
	require.NoError(t, j.Append(entryAt(3, "dec", nil)))

	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"inc": 2, "dec": 1}, stats)
}

func TestJournal_VerifyCleanLog(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(entryAt(1, "a", map[string]any{"n": 1})))
	require.NoError(t, j.Append(entryAt(2, "b", nil)))

	checked, err := j.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), checked)
}

func TestJournal_VerifyDetectsTamperedPayload(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Append(entryAt(1, "a", map[string]any{"n": 1})))
	require.NoError(t, j.Append(entryAt(2, "b", map[string]any{"n": 2})))

	_, err := j.db.Exec(`UPDATE actions SET payload = '{"n":99}' WHERE seq = 2`)
	require.NoError(t, err)

	checked, err := j.Verify(context.Background())
	require.Error(t, err)

	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(2), verr.Seq)
	assert.Contains(t, verr.Reason, "id mismatch")
	assert.Equal(t, int64(1), checked, "records before the violation verified clean")
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flume.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(entryAt(1, "a", nil)))
	require.NoError(t, j.Close())

	// Reopening applies the schema and migrations without error and the
	// data survives.
	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	last, err := j2.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
}

func TestJournal_EmptyLog(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	records, err := j.Replay(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	checked, err := j.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), checked)
}
