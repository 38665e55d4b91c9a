package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dfashion/dfashion-api/internal/jobs"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditWriter persists audit records.
type AuditWriter interface {
	Write(ctx context.Context, rec rbac.AuditRecord) error
}

// AuditPersistJob drains audit records queued by the API.
type AuditPersistJob struct {
	Writer  AuditWriter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditPersistJob wires dependencies for the persist handler.
func NewAuditPersistJob(writer AuditWriter, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPersistJob {
	return &AuditPersistJob{Writer: writer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditPersist tasks.
func (j *AuditPersistJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Writer == nil {
		return errors.New("audit persist: handler not configured")
	}
	var rec rbac.AuditRecord
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		j.logger().Warn("drop malformed audit payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuditPersist)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Writer.Write(ctx, rec); err != nil {
		resultErr = err
		j.logger().Error("persist audit record",
			slog.String("audit_id", rec.ID),
			slog.String("action", rec.Action),
			slog.Any("error", err),
		)
		return resultErr
	}
	return resultErr
}

func (j *AuditPersistJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditPersist))
	}
	return slog.Default().With(slog.String("job", TaskAuditPersist))
}

func (j *AuditPersistJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
