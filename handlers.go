package quest

import (
	"context"
	"errors"
)

// Action is a synchronous completion handler.
type Action func()

// ErrorAction is a synchronous error handler.
type ErrorAction func(err error)

// AsyncAction is an asynchronous completion handler, for example one that
// acknowledges a message with a broker round-trip.
type AsyncAction func(ctx context.Context) error

// AsyncErrorAction is an asynchronous error handler, for example one that
// unlocks or dead-letters a message.
type AsyncErrorAction func(ctx context.Context, err error) error

// handlers is the pair of terminal callbacks bound to a quest. A quest holds
// exactly one implementation, chosen at construction, and shares it with
// every quest derived from it.
type handlers interface {
	async() bool
	complete() error
	fail(err error) error
	completeAsync(ctx context.Context) error
	failAsync(ctx context.Context, err error) error
}

type syncHandlers struct {
	onComplete Action
	onError    ErrorAction
}

func (syncHandlers) async() bool { return false }

func (h syncHandlers) complete() error {
	h.onComplete()
	return nil
}

func (h syncHandlers) fail(err error) error {
	h.onError(err)
	return nil
}

// completeAsync falls back to the synchronous handler.
func (h syncHandlers) completeAsync(context.Context) error {
	return h.complete()
}

func (h syncHandlers) failAsync(_ context.Context, err error) error {
	return h.fail(err)
}

type asyncHandlers struct {
	onComplete AsyncAction
	onError    AsyncErrorAction
}

func (asyncHandlers) async() bool { return true }

func (asyncHandlers) complete() error { return ErrMisusedMode }

func (asyncHandlers) fail(error) error { return ErrMisusedMode }

func (h asyncHandlers) completeAsync(ctx context.Context) error {
	return h.onComplete(ctx)
}

func (h asyncHandlers) failAsync(ctx context.Context, err error) error {
	return h.onError(ctx, err)
}

var errNilHandlers = errors.New("quest: quest has no handlers")
