package quest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder captures handler invocations for assertions.
type recorder struct {
	completed int
	failed    int
	lastErr   error
}

func (r *recorder) onComplete() { r.completed++ }

func (r *recorder) onError(err error) {
	r.failed++
	r.lastErr = err
}

func (r *recorder) onCompleteAsync(context.Context) error {
	r.completed++
	return nil
}

func (r *recorder) onErrorAsync(_ context.Context, err error) error {
	r.failed++
	r.lastErr = err
	return nil
}

func newSyncQuest[T any](t *testing.T, payload T) (*Quest[T], *recorder) {
	t.Helper()
	rec := &recorder{}
	q, err := New(payload, rec.onComplete, rec.onError)
	require.NoError(t, err)
	return q, rec
}

func newAsyncQuest[T any](t *testing.T, payload T) (*Quest[T], *recorder) {
	t.Helper()
	rec := &recorder{}
	q, err := NewAsync(payload, rec.onCompleteAsync, rec.onErrorAsync)
	require.NoError(t, err)
	return q, rec
}

func TestNew_RejectsNilHandlers(t *testing.T) {
	t.Parallel()

	_, err := New(1, nil, func(error) {})
	require.ErrorIs(t, err, ErrArgument)
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "onComplete", argErr.Param)

	_, err = New(1, func() {}, nil)
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "onError", argErr.Param)

	_, err = NewAsync(1, nil, func(context.Context, error) error { return nil })
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "onComplete", argErr.Param)

	_, err = NewAsync(1, func(context.Context) error { return nil }, nil)
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "onError", argErr.Param)
}

func TestNew_StartsPending(t *testing.T) {
	t.Parallel()

	q, rec := newSyncQuest(t, "hello")
	require.Equal(t, "hello", q.Payload())
	require.Equal(t, StatePending, q.State())
	require.NotEmpty(t, q.ID())
	require.False(t, q.IsAsync())
	require.Zero(t, rec.completed)
	require.Zero(t, rec.failed)
}

func TestQuest_CompleteRunsHandlerEveryCall(t *testing.T) {
	t.Parallel()

	q, rec := newSyncQuest(t, 42)

	require.NoError(t, q.Complete())
	require.Equal(t, StateCompleted, q.State())
	require.Equal(t, 1, rec.completed)

	// No idempotence guard: a second call runs the handler again.
	require.NoError(t, q.Complete())
	require.Equal(t, 2, rec.completed)
	require.Zero(t, rec.failed)
}

func TestQuest_Fail(t *testing.T) {
	t.Parallel()

	q, rec := newSyncQuest(t, 42)
	boom := errors.New("boom")

	require.NoError(t, q.Fail(boom))
	require.Equal(t, StateFailed, q.State())
	require.Equal(t, 1, rec.failed)
	require.Same(t, boom, rec.lastErr)
	require.Zero(t, rec.completed)
}

func TestQuest_SyncMethodsOnAsyncQuestAreMisused(t *testing.T) {
	t.Parallel()

	q, rec := newAsyncQuest(t, 42)
	require.True(t, q.IsAsync())

	require.ErrorIs(t, q.Complete(), ErrMisusedMode)
	require.ErrorIs(t, q.Fail(errors.New("x")), ErrMisusedMode)
	require.Equal(t, StatePending, q.State())
	require.Zero(t, rec.completed)
	require.Zero(t, rec.failed)
}

func TestQuest_CompleteAsyncFallsBackToSyncHandler(t *testing.T) {
	t.Parallel()

	q, rec := newSyncQuest(t, 42)

	require.NoError(t, q.CompleteAsync(context.Background()))
	require.Equal(t, StateCompleted, q.State())
	require.Equal(t, 1, rec.completed)
}

func TestQuest_FailAsyncFallsBackToSyncHandler(t *testing.T) {
	t.Parallel()

	q, rec := newSyncQuest(t, 42)
	boom := errors.New("boom")

	require.NoError(t, q.FailAsync(context.Background(), boom))
	require.Equal(t, StateFailed, q.State())
	require.Same(t, boom, rec.lastErr)
}

func TestQuest_AsyncHandlers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, rec := newAsyncQuest(t, 42)

	require.NoError(t, q.CompleteAsync(ctx))
	require.Equal(t, StateCompleted, q.State())
	require.Equal(t, 1, rec.completed)

	boom := errors.New("boom")
	require.NoError(t, q.FailAsync(ctx, boom))
	require.Equal(t, StateFailed, q.State())
	require.Same(t, boom, rec.lastErr)
}

func TestQuest_AsyncHandlerErrorIsReturned(t *testing.T) {
	t.Parallel()

	ackErr := errors.New("ack failed")
	q, err := NewAsync(1,
		func(context.Context) error { return ackErr },
		func(context.Context, error) error { return nil },
	)
	require.NoError(t, err)

	require.ErrorIs(t, q.CompleteAsync(context.Background()), ackErr)
	require.Equal(t, StateCompleted, q.State())
}

func TestQuest_ZeroValueHasNoHandlers(t *testing.T) {
	t.Parallel()

	var q Quest[int]
	require.Error(t, q.Complete())
	require.Error(t, q.CompleteAsync(context.Background()))
	require.False(t, q.IsAsync())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", StatePending.String())
	require.Equal(t, "completed", StateCompleted.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "unknown", State(99).String())

	require.False(t, StatePending.IsTerminal())
	require.True(t, StateCompleted.IsTerminal())
	require.True(t, StateFailed.IsTerminal())
}
