// Package mailbox is a small lock/ack message store used to drive quests end
// to end in tests and in the demo command. It models the receive side of a
// broker (lock with a lease, then ack, unlock or dead-letter) and nothing
// more: there is no topic routing and no network transport.
package mailbox

import (
	"context"
	"errors"
	"time"
)

// ErrNotLocked is returned when a message is settled with a lock token that
// is no longer current: the lease expired and the message was locked again,
// or the message was already settled.
var ErrNotLocked = errors.New("mailbox: message is not locked with this token")

// Message is a posted body plus its delivery bookkeeping.
type Message struct {
	ID   string
	Body any

	// Deliveries counts how many times the message has been locked,
	// including the current lock.
	Deliveries int

	PostedAt    time.Time
	LockedBy    string
	LockedUntil time.Time

	// LockToken identifies this delivery. Every Lock issues a fresh token, so
	// two deliveries to the same owner never share one.
	LockToken string

	// Reason is set when the message has been dead-lettered.
	Reason string
}

// Mailbox is the lock/ack contract a receiver works against.
type Mailbox interface {
	// Post stores body and returns the new message ID.
	Post(ctx context.Context, body any) (string, error)

	// Lock returns the oldest message that is neither locked nor
	// dead-lettered, locking it for owner until lease elapses. A message whose
	// lease expired is delivered again. Lock blocks until a message is
	// available or ctx is done.
	Lock(ctx context.Context, owner string, lease time.Duration) (*Message, error)

	// Ack removes a message whose current lock carries token.
	Ack(ctx context.Context, id, token string) error

	// Unlock releases the lock identified by token so the message can be
	// delivered again.
	Unlock(ctx context.Context, id, token string) error

	// DeadLetter parks a message whose current lock carries token; it is
	// never delivered again.
	DeadLetter(ctx context.Context, id, token, reason string) error

	// DeadLetters lists parked messages, oldest first.
	DeadLetters(ctx context.Context) ([]Message, error)

	// Len returns the approximate number of live (not dead-lettered) messages.
	Len() int
}

const defaultPollInterval = 10 * time.Millisecond

// waitPoll sleeps for one poll interval on tmr or returns ctx's error.
func waitPoll(ctx context.Context, tmr *time.Timer, d time.Duration) error {
	tmr.Reset(d)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// newStoppedTimer returns a timer that is ready to be Reset.
func newStoppedTimer() *time.Timer {
	tmr := time.NewTimer(0)
	if !tmr.Stop() {
		select {
		case <-tmr.C:
		default:
		}
	}
	return tmr
}
