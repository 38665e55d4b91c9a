package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dfashion/dfashion-api/internal/rbac"
	"github.com/dfashion/dfashion-api/jobs"
)

// Modes accepted by SinkForMode.
const (
	ModeAsync = "async"
	ModeSync  = "sync"
	ModeOff   = "off"
)

// Sink receives committed audit records.
type Sink interface {
	Write(ctx context.Context, rec rbac.AuditRecord) error
}

// Enqueuer hands records to the background worker.
type Enqueuer interface {
	EnqueueAuditRecord(ctx context.Context, rec rbac.AuditRecord) error
}

// QueueSink defers persistence to the worker through the job queue.
type QueueSink struct {
	queue Enqueuer
}

// NewQueueSink wraps queue as a Sink.
func NewQueueSink(queue Enqueuer) *QueueSink {
	return &QueueSink{queue: queue}
}

// Write enqueues rec.
func (s *QueueSink) Write(ctx context.Context, rec rbac.AuditRecord) error {
	return s.queue.EnqueueAuditRecord(ctx, rec)
}

// LogSink writes records to the structured log only.
type LogSink struct {
	Logger *slog.Logger
}

// Write logs rec at info level.
func (s LogSink) Write(ctx context.Context, rec rbac.AuditRecord) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		slog.String("audit_id", rec.ID),
		slog.String("actor_id", rec.ActorID),
		slog.String("action", rec.Action),
		slog.String("resource", rec.Resource),
		slog.String("resource_id", rec.ResourceID),
	)
	return nil
}

// SinkForMode picks the sink matching the configured audit mode. A nil
// sink with a nil error means auditing is disabled.
func SinkForMode(mode string, store *PGStore, client *jobs.Client) (Sink, error) {
	switch mode {
	case ModeAsync:
		if client == nil {
			return nil, fmt.Errorf("audit: mode %q requires a job client", mode)
		}
		return NewQueueSink(client), nil
	case ModeSync:
		if store == nil {
			return nil, fmt.Errorf("audit: mode %q requires a store", mode)
		}
		return store, nil
	case ModeOff:
		return nil, nil
	default:
		return nil, fmt.Errorf("audit: unknown mode %q", mode)
	}
}

var (
	_ Sink             = (*PGStore)(nil)
	_ Sink             = (*QueueSink)(nil)
	_ jobs.AuditWriter = (*PGStore)(nil)
	_ Enqueuer         = (*jobs.Client)(nil)
)
