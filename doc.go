// Package quest wraps a payload together with the completion and error
// handlers supplied by whoever produced it.
//
// The typical producer is a message-queue receiver. It locks a message, wraps
// the body in a Quest whose completion handler acknowledges the message and
// whose error handler unlocks or dead-letters it, and hands the quest to a
// pipeline of independent stages. No stage needs to know how success or
// failure is reported: whichever stage fails triggers the error handler, and
// the stage that finishes last triggers the completion handler.
//
// # Building
//
// Quests are built with Builder (synchronous handlers) or AsyncBuilder
// (context-aware handlers that may return an error):
//
//	q, err := quest.NewAsyncBuilder[Order]().
//	    WithPayload(order).
//	    OnCompleteAsync(func(ctx context.Context) error { return box.Ack(ctx, msg.ID, msg.LockToken) }).
//	    OnErrorAsync(func(ctx context.Context, err error) error { return box.Unlock(ctx, msg.ID, msg.LockToken) }).
//	    Build()
//
// New and NewAsync do the same without the fluent API.
//
// # Operations
//
//   - Tap runs a side effect against the payload and returns the same quest.
//   - Select projects the payload and returns a new quest with the same
//     handlers.
//   - Complete optionally runs a final action, then marks the quest Completed
//     and runs the completion handler.
//   - Quest.Fail marks the quest Failed and runs the error handler.
//
// Each operation has an Async form taking a context.Context, which is passed
// to the user function.
//
// # Failures
//
// When a user function returns an error, the quest is marked Failed, its
// error handler runs to completion, and the same error value is returned to
// the caller. Cancellation is not special: a ctx error returned by the user
// function follows the same path. A panic in a user function is reported to
// the error handler as a *PanicError and then re-raised.
//
// The library never retries, and it does not guard against finalizing a
// quest twice: a second Complete runs the completion handler again.
//
// # States
//
// Every quest starts StatePending. Complete moves it to StateCompleted, any
// failure to StateFailed. Quests derived by Select start Pending regardless of
// the state of their source.
//
// A Quest is not safe for concurrent use.
package quest
