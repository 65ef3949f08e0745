// Command questdemo posts a handful of orders to a mailbox and runs them
// through a quest pipeline, showing which messages are acknowledged and
// which end up dead-lettered.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/petrijr/quest"
	"github.com/petrijr/quest/internal/config"
	"github.com/petrijr/quest/internal/mailbox"
	"github.com/petrijr/quest/internal/receiver"

	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	timeout := flag.Duration("timeout", 30*time.Second, "give up if the mailbox has not drained by then")
	flag.Parse()

	if err := run(*configPath, *timeout, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "questdemo:", err)
		os.Exit(1)
	}
}

func run(configPath string, timeout time.Duration, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	box, closeBox, err := openMailbox(cfg)
	if err != nil {
		return err
	}
	defer closeBox()

	for _, o := range cfg.Orders {
		id, err := box.Post(ctx, o.Raw)
		if err != nil {
			return fmt.Errorf("post %q: %w", o.Raw, err)
		}
		logger.Debug("order_posted", slog.String("message_id", id), slog.String("raw", o.Raw))
	}

	metrics := &quest.BasicMetrics{}
	r := receiver.New(box, newPipeline(logger, out), receiver.Options{
		Lease:         cfg.Lease,
		MaxDeliveries: cfg.MaxDeliveries,
		Logger:        logger,
		Observer:      quest.NewCompositeObserver(quest.NewLoggingObserver(logger), metrics),
	})
	if err := r.Start(ctx, cfg.Workers); err != nil {
		return err
	}

	drainErr := waitDrained(ctx, box)
	r.Stop()
	if drainErr != nil {
		return fmt.Errorf("waiting for mailbox to drain: %w", drainErr)
	}

	return report(ctx, out, box, metrics.Snapshot())
}

func openMailbox(cfg config.Config) (mailbox.Mailbox, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		// One connection serializes workers on the database and keeps a
		// :memory: DSN pointing at a single database.
		db.SetMaxOpenConns(1)
		box, err := mailbox.NewSQLiteMailbox(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return box, func() { _ = db.Close() }, nil
	default:
		return mailbox.NewInMemoryMailbox(), func() {}, nil
	}
}

func waitDrained(ctx context.Context, box mailbox.Mailbox) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for box.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func report(ctx context.Context, out io.Writer, box mailbox.Mailbox, snap quest.BasicMetricsSnapshot) error {
	dead, err := box.DeadLetters(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "completed: %d, failed attempts: %d, stages: %d (avg %s)\n",
		snap.Completed, snap.Failed, snap.Stages, snap.AvgStageDuration)
	for _, msg := range dead {
		fmt.Fprintf(out, "dead-lettered %v after %d deliveries: %s\n", msg.Body, msg.Deliveries, msg.Reason)
	}
	return nil
}
