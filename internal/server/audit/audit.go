// Package audit defines the audit-log collaborator interface and a
// best-effort background recorder. Audit failures are logged and never fail
// the operation that produced the entry.
package audit

import (
	"context"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/logging"
)

// Entry is a single audit event.
type Entry struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
	At         time.Time
}

// Log accepts audit events. Record must never block the caller for long and
// must never return an error that aborts the calling operation.
type Log interface {
	Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any)
}

// Sink persists audit entries (to a table, a log pipeline, ...).
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Recorder queues entries to a single background worker instead of spawning
// untracked goroutines per event. When the queue is full the entry is dropped
// with a warning.
type Recorder struct {
	queue  chan Entry
	sink   Sink
	logger logging.Logger
}

// NewRecorder builds a Recorder with the given queue capacity.
func NewRecorder(sink Sink, logger logging.Logger, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Recorder{
		queue:  make(chan Entry, capacity),
		sink:   sink,
		logger: logger.With("module", "audit"),
	}
}

func (r *Recorder) Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any) {
	e := Entry{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		At:         time.Now().UTC(),
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn(ctx, "audit queue full, entry dropped", "action", action, "target_id", targetID)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is already
// queued and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					r.write(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	if err := r.sink.Write(ctx, e); err != nil {
		r.logger.Error(ctx, "audit write failed", "action", e.Action, "target_id", e.TargetID, "error", err.Error())
	}
}

// LoggerSink writes audit entries as structured log records. Used when no
// dedicated audit table is configured.
type LoggerSink struct {
	logger logging.Logger
}

// NewLoggerSink builds a Sink over the given logger.
func NewLoggerSink(logger logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logger.With("module", "audit_trail")}
}

func (s *LoggerSink) Write(ctx context.Context, e Entry) error {
	s.logger.Info(ctx, "audit",
		"actor_id", e.ActorID,
		"action", e.Action,
		"target_type", e.TargetType,
		"target_id", e.TargetID,
		"details", e.Details,
		"at", e.At,
	)
	return nil
}
