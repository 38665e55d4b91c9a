package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dfashion/dfashion-api/internal/jobs"
)

const defaultRetentionDays = 365

// AuditPurger removes audit records older than a cutoff.
type AuditPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurgeJob enforces audit log retention.
type AuditPurgeJob struct {
	Purger  AuditPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditPurgeJob initialises the retention handler.
func NewAuditPurgeJob(purger AuditPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPurgeJob {
	return &AuditPurgeJob{
		Purger:  purger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the retention sweep.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("audit purge: handler not configured")
	}
	var payload AuditPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultRetentionDays
	}

	start := j.now()
	tracker := j.metrics().Track(TaskAuditPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("retention_days", payload.RetentionDays))
	cutoff := start.AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.Purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("purge failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPurged(removed)
	logger.Info("completed audit purge",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *AuditPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditPurge))
	}
	return slog.Default().With(slog.String("job", TaskAuditPurge))
}

func (j *AuditPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditPurgeJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
