package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanho/flume/internal/engine"
)

func actionOf(kind string) engine.Action {
	return engine.Action{Kind: kind}
}

func TestActionQueue_FIFO(t *testing.T) {
	q := newActionQueue()

	assert.True(t, q.enqueue(actionOf("a")))
	assert.True(t, q.enqueue(actionOf("b")))
	assert.True(t, q.enqueue(actionOf("c")))
	assert.Equal(t, 3, q.length())

	for _, want := range []string{"a", "b", "c"} {
		act, ok := q.tryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, act.Kind)
	}

	_, ok := q.tryDequeue()
	assert.False(t, ok)
}

func TestActionQueue_SignalCoalesces(t *testing.T) {
	q := newActionQueue()

	q.enqueue(actionOf("a"))
	q.enqueue(actionOf("b"))

	// Two enqueues, one pending wakeup.
	<-q.wait()
	select {
	case <-q.wait():
		t.Fatal("expected coalesced signal")
	default:
	}
}

func TestActionQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newActionQueue()
	q.enqueue(actionOf("a"))
	q.close()

	assert.False(t, q.enqueue(actionOf("b")), "closed queue rejects enqueue")
	assert.False(t, q.drained(), "still one item pending")

	act, ok := q.tryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", act.Kind)
	assert.True(t, q.drained())

	// The signal channel is closed: waits return immediately.
	<-q.wait()
	<-q.wait()

	// Double close is a no-op.
	q.close()
}
