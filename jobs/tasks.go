package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit writes so they never wait behind slower work.
	QueueAudit = "audit"
	// TaskAuditPersist stores one audit record.
	TaskAuditPersist = "audit:persist"
	// TaskAuditPurge deletes audit records past retention.
	TaskAuditPurge = "audit:purge"
)

// NewAuditPersistTask constructs an Asynq task carrying rec.
func NewAuditPersistTask(rec rbac.AuditRecord) (*asynq.Task, error) {
	if rec.ID == "" || rec.Action == "" || rec.Resource == "" {
		return nil, errors.New("audit persist: record requires id, action and resource")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPersist, data, asynq.Queue(QueueAudit), asynq.TaskID(rec.ID)), nil
}

// AuditPurgePayload configures the retention sweep.
type AuditPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditPurgeTask constructs the retention sweep task.
func NewAuditPurgeTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}
