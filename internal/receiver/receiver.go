// Package receiver connects a mailbox to a quest pipeline. Each locked message
// becomes an asynchronous quest whose completion acknowledges the message and
// whose failure unlocks it, or dead-letters it once it has been delivered too
// many times.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petrijr/quest"
	"github.com/petrijr/quest/internal/mailbox"
)

// Pipeline processes one quest. It is expected to finish the quest, either
// through quest.CompleteAsync or through a failing Tap/Select.
type Pipeline[T any] func(ctx context.Context, q *quest.Quest[T]) error

// Options configures a Receiver. Zero values select defaults.
type Options struct {
	// Owner is recorded on every lock this receiver takes. Defaults to a
	// random ID. Settling uses the per-delivery lock token, not the owner.
	Owner string

	// Lease is how long a locked message stays hidden. Defaults to 30s.
	Lease time.Duration

	// MaxDeliveries is the delivery count at which a failed message is
	// dead-lettered instead of unlocked. Defaults to 5.
	MaxDeliveries int

	Logger   *slog.Logger
	Observer quest.Observer
}

func (o Options) withDefaults() Options {
	if o.Owner == "" {
		o.Owner = "receiver-" + uuid.NewString()
	}
	if o.Lease <= 0 {
		o.Lease = 30 * time.Second
	}
	if o.MaxDeliveries <= 0 {
		o.MaxDeliveries = 5
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Receiver pulls messages from a Mailbox and runs them through a Pipeline.
type Receiver[T any] struct {
	box      mailbox.Mailbox
	pipeline Pipeline[T]
	opts     Options

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Receiver.
func New[T any](box mailbox.Mailbox, pipeline Pipeline[T], opts Options) *Receiver[T] {
	return &Receiver[T]{
		box:      box,
		pipeline: pipeline,
		opts:     opts.withDefaults(),
	}
}

// Owner returns the lock owner used by this receiver.
func (r *Receiver[T]) Owner() string { return r.opts.Owner }

// ProcessOne locks a single message and runs it through the pipeline.
// Returns (processed, error):
//   - processed == false: no message was locked (ctx ended or the mailbox failed)
//   - processed == true: a message was handled; err is the pipeline's result.
func (r *Receiver[T]) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := r.box.Lock(ctx, r.opts.Owner, r.opts.Lease)
	if err != nil {
		return false, err
	}
	log := r.opts.Logger.With(
		slog.String("message_id", msg.ID),
		slog.Int("deliveries", msg.Deliveries),
	)

	body, ok := msg.Body.(T)
	if !ok {
		reason := fmt.Sprintf("unexpected body type %T", msg.Body)
		return true, r.reject(ctx, log, msg, reason)
	}

	var settled bool
	q, err := quest.NewAsyncBuilder[T]().
		WithPayload(body).
		WithID(msg.ID).
		WithObserver(r.opts.Observer).
		OnCompleteAsync(func(ctx context.Context) error {
			settled = true
			if err := r.box.Ack(ctx, msg.ID, msg.LockToken); err != nil {
				return fmt.Errorf("receiver: ack %s: %w", msg.ID, err)
			}
			log.DebugContext(ctx, "message_acked")
			return nil
		}).
		OnErrorAsync(func(ctx context.Context, cause error) error {
			settled = true
			return r.release(ctx, log, msg, cause)
		}).
		Build()
	if err != nil {
		return true, r.reject(ctx, log, msg, err.Error())
	}

	runErr := r.pipeline(ctx, q)
	switch {
	case runErr != nil && !settled:
		// The pipeline failed outside a quest operation; release the message
		// through the quest so the error handler still runs.
		if err := q.FailAsync(context.WithoutCancel(ctx), runErr); err != nil {
			return true, errors.Join(runErr, err)
		}
	case runErr == nil && !settled:
		log.WarnContext(ctx, "quest_unsettled",
			slog.Duration("lease", r.opts.Lease),
		)
	}
	return true, runErr
}

// release unlocks msg, or dead-letters it once MaxDeliveries is reached.
func (r *Receiver[T]) release(ctx context.Context, log *slog.Logger, msg *mailbox.Message, cause error) error {
	if msg.Deliveries >= r.opts.MaxDeliveries {
		return r.reject(ctx, log, msg, cause.Error())
	}
	if err := r.box.Unlock(ctx, msg.ID, msg.LockToken); err != nil {
		return fmt.Errorf("receiver: unlock %s: %w", msg.ID, err)
	}
	log.InfoContext(ctx, "message_unlocked", slog.Any("error", cause))
	return nil
}

func (r *Receiver[T]) reject(ctx context.Context, log *slog.Logger, msg *mailbox.Message, reason string) error {
	if err := r.box.DeadLetter(ctx, msg.ID, msg.LockToken, reason); err != nil {
		return fmt.Errorf("receiver: dead-letter %s: %w", msg.ID, err)
	}
	log.WarnContext(ctx, "message_dead_lettered", slog.String("reason", reason))
	return nil
}

// Start launches workers goroutines that call ProcessOne until Stop is
// called or ctx is cancelled.
//
// If Start is called more than once without Stop, it returns an error.
func (r *Receiver[T]) Start(ctx context.Context, workers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("receiver: already started")
	}
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.ProcessOne(ctx)
				if err == nil {
					continue
				}
				if !processed && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
					return
				}
				// A failing message must not stop the loop.
				r.opts.Logger.ErrorContext(ctx, "receiver_error", slog.Any("error", err))
				if !processed {
					// The mailbox itself failed; back off before locking again.
					select {
					case <-ctx.Done():
						return
					case <-time.After(100 * time.Millisecond):
					}
				}
			}
		}()
	}

	return nil
}

// Stop cancels the workers started by Start and waits for them to exit.
func (r *Receiver[T]) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
