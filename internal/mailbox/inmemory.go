package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryMailbox keeps messages in a slice ordered by posting time.
// It is safe for concurrent use.
type InMemoryMailbox struct {
	mu           sync.Mutex
	live         []*Message
	dead         []Message
	pollInterval time.Duration
	now          func() time.Time
}

// NewInMemoryMailbox returns an empty mailbox.
func NewInMemoryMailbox() *InMemoryMailbox {
	return &InMemoryMailbox{
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
}

// Ensure InMemoryMailbox implements Mailbox.
var _ Mailbox = (*InMemoryMailbox)(nil)

func (m *InMemoryMailbox) Post(ctx context.Context, body any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := &Message{
		ID:       uuid.NewString(),
		Body:     body,
		PostedAt: m.now(),
	}
	m.live = append(m.live, msg)
	return msg.ID, nil
}

func (m *InMemoryMailbox) Lock(ctx context.Context, owner string, lease time.Duration) (*Message, error) {
	tmr := newStoppedTimer()
	defer tmr.Stop()

	for {
		if msg := m.tryLock(owner, lease); msg != nil {
			return msg, nil
		}
		if err := waitPoll(ctx, tmr, m.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (m *InMemoryMailbox) tryLock(owner string, lease time.Duration) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, msg := range m.live {
		if msg.LockedBy != "" && now.Before(msg.LockedUntil) {
			continue
		}
		msg.LockedBy = owner
		msg.LockedUntil = now.Add(lease)
		msg.LockToken = uuid.NewString()
		msg.Deliveries++
		cp := *msg
		return &cp
	}
	return nil
}

func (m *InMemoryMailbox) Ack(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lockedIndex(id, token)
	if err != nil {
		return err
	}
	m.live = append(m.live[:i], m.live[i+1:]...)
	return nil
}

func (m *InMemoryMailbox) Unlock(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lockedIndex(id, token)
	if err != nil {
		return err
	}
	m.live[i].LockedBy = ""
	m.live[i].LockedUntil = time.Time{}
	m.live[i].LockToken = ""
	return nil
}

func (m *InMemoryMailbox) DeadLetter(ctx context.Context, id, token, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lockedIndex(id, token)
	if err != nil {
		return err
	}
	msg := *m.live[i]
	msg.LockedBy = ""
	msg.LockedUntil = time.Time{}
	msg.LockToken = ""
	msg.Reason = reason
	m.dead = append(m.dead, msg)
	m.live = append(m.live[:i], m.live[i+1:]...)
	return nil
}

func (m *InMemoryMailbox) DeadLetters(ctx context.Context) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.dead))
	copy(out, m.dead)
	return out, nil
}

func (m *InMemoryMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// lockedIndex finds a message whose current lock carries token. Callers
// hold mu.
func (m *InMemoryMailbox) lockedIndex(id, token string) (int, error) {
	for i, msg := range m.live {
		if msg.ID != id {
			continue
		}
		if token == "" || msg.LockToken != token {
			return -1, ErrNotLocked
		}
		return i, nil
	}
	return -1, ErrNotLocked
}
