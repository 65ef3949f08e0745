package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SQLiteMailbox is a Mailbox persisted in a SQLite table. It uses simple FIFO
// semantics based on an auto-incrementing sequence and claims messages inside
// a transaction.
type SQLiteMailbox struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteMailbox initializes the messages table in db and returns a mailbox.
func NewSQLiteMailbox(db *sql.DB) (*SQLiteMailbox, error) {
	m := &SQLiteMailbox{
		db:           db,
		pollInterval: defaultPollInterval,
	}
	if err := m.initSchema(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SQLiteMailbox) initSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS mailbox_messages (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			body         BLOB,
			deliveries   INTEGER NOT NULL DEFAULT 0,
			posted_at    INTEGER NOT NULL,
			locked_by    TEXT NOT NULL DEFAULT '',
			locked_until INTEGER NOT NULL DEFAULT 0,
			lock_token   TEXT NOT NULL DEFAULT '',
			dead         INTEGER NOT NULL DEFAULT 0,
			reason       TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Ensure SQLiteMailbox implements Mailbox.
var _ Mailbox = (*SQLiteMailbox)(nil)

func (m *SQLiteMailbox) Post(ctx context.Context, body any) (string, error) {
	data, err := encodeBody(body)
	if err != nil {
		return "", fmt.Errorf("mailbox: encode body: %w", err)
	}
	id := uuid.NewString()
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO mailbox_messages (id, body, posted_at)
		VALUES (?, ?, ?)`,
		id, data, time.Now().UnixNano(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *SQLiteMailbox) Lock(ctx context.Context, owner string, lease time.Duration) (*Message, error) {
	tmr := newStoppedTimer()
	defer tmr.Stop()

	for {
		msg, err := m.tryLock(ctx, owner, lease)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if err := waitPoll(ctx, tmr, m.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (m *SQLiteMailbox) tryLock(ctx context.Context, owner string, lease time.Duration) (*Message, error) {
	now := time.Now()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var (
		id         string
		body       []byte
		deliveries int
		postedAt   int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, body, deliveries, posted_at
		FROM mailbox_messages
		WHERE dead = 0 AND (locked_by = '' OR locked_until <= ?)
		ORDER BY seq
		LIMIT 1`, now.UnixNano(),
	).Scan(&id, &body, &deliveries, &postedAt)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	until := now.Add(lease)
	token := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		UPDATE mailbox_messages
		SET locked_by = ?, locked_until = ?, lock_token = ?, deliveries = deliveries + 1
		WHERE id = ?`,
		owner, until.UnixNano(), token, id,
	); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	decoded, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("mailbox: decode message %q: %w", id, err)
	}

	return &Message{
		ID:          id,
		Body:        decoded,
		Deliveries:  deliveries + 1,
		PostedAt:    time.Unix(0, postedAt),
		LockedBy:    owner,
		LockedUntil: until,
		LockToken:   token,
	}, nil
}

func (m *SQLiteMailbox) Ack(ctx context.Context, id, token string) error {
	res, err := m.db.ExecContext(ctx, `
		DELETE FROM mailbox_messages
		WHERE id = ? AND lock_token = ? AND lock_token != '' AND dead = 0`,
		id, token,
	)
	return settled(res, err)
}

func (m *SQLiteMailbox) Unlock(ctx context.Context, id, token string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE mailbox_messages
		SET locked_by = '', locked_until = 0, lock_token = ''
		WHERE id = ? AND lock_token = ? AND lock_token != '' AND dead = 0`,
		id, token,
	)
	return settled(res, err)
}

func (m *SQLiteMailbox) DeadLetter(ctx context.Context, id, token, reason string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE mailbox_messages
		SET dead = 1, reason = ?, locked_by = '', locked_until = 0, lock_token = ''
		WHERE id = ? AND lock_token = ? AND lock_token != '' AND dead = 0`,
		reason, id, token,
	)
	return settled(res, err)
}

func (m *SQLiteMailbox) DeadLetters(ctx context.Context) ([]Message, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, body, deliveries, posted_at, reason
		FROM mailbox_messages
		WHERE dead = 1
		ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			msg      Message
			body     []byte
			postedAt int64
		)
		if err := rows.Scan(&msg.ID, &body, &msg.Deliveries, &postedAt, &msg.Reason); err != nil {
			return nil, err
		}
		if msg.Body, err = decodeBody(body); err != nil {
			return nil, fmt.Errorf("mailbox: decode message %q: %w", msg.ID, err)
		}
		msg.PostedAt = time.Unix(0, postedAt)
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (m *SQLiteMailbox) Len() int {
	var n int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM mailbox_messages WHERE dead = 0`).Scan(&n); err != nil {
		slog.Warn("mailbox: count failed", slog.Any("error", err))
		return 0
	}
	return n
}

// settled maps a zero-row update to ErrNotLocked.
func settled(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotLocked
	}
	return nil
}
