package quest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives lifecycle callbacks from quests for logging and metrics.
//
// Implementations should be fast and non-blocking; they run inline on the
// pipeline's call path.
type Observer interface {
	// OnStage is called after a user function passed to Tap, Select or
	// Complete returns, for both successes and failures (err != nil).
	OnStage(ctx context.Context, id string, stage string, err error, duration time.Duration)

	// OnCompleted is called after the completion handler returns successfully.
	OnCompleted(ctx context.Context, id string)

	// OnFailed is called after the error handler has run.
	OnFailed(ctx context.Context, id string, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnStage(ctx context.Context, id, stage string, err error, d time.Duration) {}
func (NoopObserver) OnCompleted(ctx context.Context, id string)                                {}
func (NoopObserver) OnFailed(ctx context.Context, id string, err error)                        {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnStage(ctx context.Context, id, stage string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStage(ctx, id, stage, err, d)
	}
}

func (c *CompositeObserver) OnCompleted(ctx context.Context, id string) {
	for _, o := range c.observers {
		o.OnCompleted(ctx, id)
	}
}

func (c *CompositeObserver) OnFailed(ctx context.Context, id string, err error) {
	for _, o := range c.observers {
		o.OnFailed(ctx, id, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs quest events using the
// provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnStage(ctx context.Context, id, stage string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "quest_stage",
		slog.String("quest_id", id),
		slog.String("stage", stage),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnCompleted(ctx context.Context, id string) {
	o.Logger.InfoContext(ctx, "quest_completed",
		slog.String("quest_id", id),
	)
}

func (o *LoggingObserver) OnFailed(ctx context.Context, id string, err error) {
	o.Logger.ErrorContext(ctx, "quest_failed",
		slog.String("quest_id", id),
		slog.Any("error", err),
	)
}

// BasicMetrics counts quest outcomes and aggregates stage durations.
// It can be combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	completed     atomic.Int64
	failed        atomic.Int64
	stages        atomic.Int64
	stageFailures atomic.Int64
	totalStage    atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Completed int64
	Failed    int64

	Stages           int64
	StageFailures    int64
	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnStage(ctx context.Context, id, stage string, err error, d time.Duration) {
	m.stages.Add(1)
	m.totalStage.Add(d.Nanoseconds())
	if err != nil {
		m.stageFailures.Add(1)
	}
}

func (m *BasicMetrics) OnCompleted(ctx context.Context, id string) {
	m.completed.Add(1)
}

func (m *BasicMetrics) OnFailed(ctx context.Context, id string, err error) {
	m.failed.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	stages := m.stages.Load()
	totalNs := m.totalStage.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		Completed:        m.completed.Load(),
		Failed:           m.failed.Load(),
		Stages:           stages,
		StageFailures:    m.stageFailures.Load(),
		AvgStageDuration: avg,
	}
}
