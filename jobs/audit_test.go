package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/dfashion/dfashion-api/internal/jobs"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

type fakeWriter struct {
	records []rbac.AuditRecord
	err     error
}

func (f *fakeWriter) Write(ctx context.Context, rec rbac.AuditRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakePurger struct {
	cutoff  time.Time
	removed int64
}

func (f *fakePurger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
			return false
		}
	}
	return true
}

func sampleRecord() rbac.AuditRecord {
	owner := true
	return rbac.AuditRecord{
		ID:         "6f1c2a8e-0000-4000-8000-000000000001",
		ActorID:    "u1",
		ActorRole:  rbac.RoleSeller,
		Action:     "product.update",
		Resource:   "products",
		ResourceID: "p1",
		IsOwner:    &owner,
		At:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Payload:    json.RawMessage(`{"name":"Linen shirt"}`),
	}
}

func TestAuditPersistTaskRoundTrip(t *testing.T) {
	task, err := NewAuditPersistTask(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, TaskAuditPersist, task.Type())

	reg := prometheus.NewRegistry()
	writer := &fakeWriter{}
	job := NewAuditPersistJob(writer, nil, jobmetrics.NewMetrics(reg))
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, writer.records, 1)
	got := writer.records[0]
	assert.Equal(t, "product.update", got.Action)
	assert.Equal(t, "p1", got.ResourceID)
	require.NotNil(t, got.IsOwner)
	assert.True(t, *got.IsOwner)
	assert.JSONEq(t, `{"name":"Linen shirt"}`, string(got.Payload))
	assert.Equal(t, 1.0, counterValue(t, reg, "dfashion_jobs_total", map[string]string{"job": TaskAuditPersist, "status": "success"}))
}

func TestAuditPersistTaskRequiresIdentity(t *testing.T) {
	rec := sampleRecord()
	rec.ID = ""
	_, err := NewAuditPersistTask(rec)
	require.Error(t, err)
}

func TestAuditPersistSkipsMalformedPayload(t *testing.T) {
	job := NewAuditPersistJob(&fakeWriter{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskAuditPersist, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditPersistWriterFailureIsRetried(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewAuditPersistJob(&fakeWriter{err: errors.New("db down")}, nil, jobmetrics.NewMetrics(reg))
	task, err := NewAuditPersistTask(sampleRecord())
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1.0, counterValue(t, reg, "dfashion_jobs_failures_total", map[string]string{"job": TaskAuditPersist}))
}

func TestAuditPurgeUsesRetentionWindow(t *testing.T) {
	reg := prometheus.NewRegistry()
	purger := &fakePurger{removed: 4}
	job := NewAuditPurgeJob(purger, nil, jobmetrics.NewMetrics(reg))
	job.clock = func() time.Time { return time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC) }

	task, err := NewAuditPurgeTask(30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), purger.cutoff)
	assert.Equal(t, 4.0, counterValue(t, reg, "dfashion_audit_records_purged_total", nil))
}

func TestAuditPurgeDefaultsRetention(t *testing.T) {
	purger := &fakePurger{}
	job := NewAuditPurgeJob(purger, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditPurgeTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.AddDate(0, 0, -defaultRetentionDays), purger.cutoff)
}
