package quest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicMetrics_CountsLifecycle(t *testing.T) {
	t.Parallel()

	metrics := &BasicMetrics{}

	build := func(payload int) *Quest[int] {
		q, err := NewBuilder[int]().
			WithPayload(payload).
			WithObserver(metrics).
			OnComplete(func() {}).
			OnError(func(error) {}).
			Build()
		require.NoError(t, err)
		return q
	}

	ok := build(1)
	next, err := Select(ok, func(v int) (int, error) { return v * 10, nil })
	require.NoError(t, err)
	_, err = Tap(next, func(int) error { return nil })
	require.NoError(t, err)
	require.NoError(t, Complete(next, nil))

	bad := build(2)
	_, err = Tap(bad, func(int) error { return errors.New("nope") })
	require.Error(t, err)

	snap := metrics.Snapshot()
	require.Equal(t, int64(1), snap.Completed)
	require.Equal(t, int64(1), snap.Failed)
	require.Equal(t, int64(3), snap.Stages)
	require.Equal(t, int64(1), snap.StageFailures)
}

func TestLoggingObserver_WritesEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &BasicMetrics{}

	q, err := NewAsyncBuilder[string]().
		WithPayload("x").
		WithID("quest-1").
		WithObserver(NewCompositeObserver(NewLoggingObserver(logger), metrics, nil)).
		OnCompleteAsync(func(context.Context) error { return nil }).
		OnErrorAsync(func(context.Context, error) error { return nil }).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = SelectAsync(ctx, q, func(context.Context, string) (int, error) { return 0, errors.New("parse") })
	require.Error(t, err)

	out := buf.String()
	require.Contains(t, out, "quest_stage")
	require.Contains(t, out, "quest_failed")
	require.Contains(t, out, "quest_id=quest-1")
	require.Equal(t, int64(1), metrics.Snapshot().Failed)
}

func TestNewCompositeObserver_Collapses(t *testing.T) {
	t.Parallel()

	require.Equal(t, NoopObserver{}, NewCompositeObserver())
	require.Equal(t, NoopObserver{}, NewCompositeObserver(nil, nil))

	m := &BasicMetrics{}
	require.Same(t, m, NewCompositeObserver(nil, m))
}
