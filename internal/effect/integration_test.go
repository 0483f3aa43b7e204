package effect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanho/flume/internal/engine"
)

// authRegistry models an authentication slice: login/success installs the
// user, login/failed clears it. login/request does not touch state.
func authRegistry() *engine.Registry {
	reg := engine.NewRegistry()
	reg.MustRegister("auth",
		map[string]any{"user": nil, "isAuthenticated": false},
		func(cur any, act engine.Action) (any, error) {
			switch act.Kind {
			case "login/success":
				return map[string]any{
					"user":            act.Payload,
					"isAuthenticated": true,
				}, nil
			case "login/failed":
				return map[string]any{"user": nil, "isAuthenticated": false}, nil
			}
			return cur, nil
		})
	return reg
}

func TestLoginFlow_EndToEnd(t *testing.T) {
	store := engine.New(authRegistry(), engine.WithLogger(discard()))

	orch := New(store, WithLogger(discard()))
	require.NoError(t, orch.Register(Effect{
		Name:     "authenticate",
		Match:    Kinds("login/request"),
		Strategy: Serialize,
		Work: func(_ context.Context, act engine.Action) ([]engine.Action, error) {
			creds := act.Payload.(map[string]any)
			return []engine.Action{
				{Kind: "login/success", Payload: creds["username"]},
			}, nil
		},
	}))
	store.Observe(orch.Notify)
	require.NoError(t, orch.Start())

	notified := make(chan any, 4)
	cancel, err := store.Subscribe(engine.SliceOf("auth"), func(v any) {
		notified <- v
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Dispatch(engine.Action{
		Kind:    "login/request",
		Payload: map[string]any{"username": "ada", "password": "secret"},
	}))

	var auth map[string]any
	select {
	case v := <-notified:
		auth = v.(map[string]any)
	case <-time.After(5 * time.Second):
		t.Fatal("no auth notification")
	}
	assert.Equal(t, "ada", auth["user"])
	assert.Equal(t, true, auth["isAuthenticated"])

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, orch.Close(ctx))

	// login/request left auth untouched; only login/success notified.
	select {
	case v := <-notified:
		t.Fatalf("unexpected extra notification: %v", v)
	default:
	}

	snap := store.State()
	v, _ := snap.Slice("auth")
	assert.Equal(t, "ada", v.(map[string]any)["user"])
	assert.Equal(t, int64(2), snap.Seq(), "request and success both consumed a seq")

	st, _ := orch.Stats("authenticate")
	assert.Equal(t, int64(1), st.Completed)
}

func TestLoginFlow_FailureEmitsFailureAction(t *testing.T) {
	store := engine.New(authRegistry(), engine.WithLogger(discard()))

	orch := New(store, WithLogger(discard()))
	require.NoError(t, orch.Register(Effect{
		Name:        "authenticate",
		Match:       Kinds("login/request"),
		Strategy:    Serialize,
		FailureKind: "login/failed",
		Work: func(_ context.Context, act engine.Action) ([]engine.Action, error) {
			return nil, context.DeadlineExceeded
		},
	}))
	store.Observe(orch.Notify)
	require.NoError(t, orch.Start())

	// The failure action rebuilds the auth map, so the subscriber fires
	// once when login/failed lands.
	failed := make(chan any, 1)
	cancel, err := store.Subscribe(engine.SliceOf("auth"), func(v any) {
		failed <- v
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Dispatch(engine.Action{
		Kind:    "login/request",
		Payload: map[string]any{"username": "ada"},
	}))

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("login/failed never landed")
	}

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, orch.Close(ctx))

	v, _ := store.State().Slice("auth")
	assert.Equal(t, false, v.(map[string]any)["isAuthenticated"])

	st, _ := orch.Stats("authenticate")
	assert.Equal(t, int64(1), st.Errored)
}
