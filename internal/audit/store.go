package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// PGStore writes and reads audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Write persists rec. Writing the same record id twice is a no-op.
func (s *PGStore) Write(ctx context.Context, rec rbac.AuditRecord) error {
	if s == nil || s.pool == nil {
		return errors.New("audit store not initialised")
	}
	if rec.Action == "" || rec.Resource == "" {
		return errors.New("audit record requires action and resource")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_logs
		(id, actor_id, actor_role, action, resource, resource_id, is_owner, occurred_at, remote_addr, user_agent, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.ActorID, string(rec.ActorRole), rec.Action, rec.Resource, rec.ResourceID,
		rec.IsOwner, nullableTime(rec.At), rec.RemoteAddr, rec.UserAgent, payload,
	)
	return err
}

const timelineSelect = `SELECT id::text, actor_id, actor_role, action, resource, resource_id, is_owner, occurred_at, remote_addr, user_agent, payload
	FROM audit_logs
	WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
	  AND ($2::timestamptz IS NULL OR occurred_at < $2 + INTERVAL '1 day')
	  AND ($3::text IS NULL OR actor_id = $3)
	  AND ($4::text IS NULL OR resource = $4)
	  AND ($5::text IS NULL OR action = $5)
	ORDER BY occurred_at DESC, id`

// TimelineWindow returns one window of records.
func (s *PGStore) TimelineWindow(ctx context.Context, arg TimelineParams) ([]rbac.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, timelineSelect+` OFFSET $6 LIMIT $7`,
		arg.FromAt, arg.ToAt, arg.Actor, arg.Resource, arg.Action, arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// TimelineAll returns every matching record.
func (s *PGStore) TimelineAll(ctx context.Context, arg TimelineParams) ([]rbac.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, timelineSelect,
		arg.FromAt, arg.ToAt, arg.Actor, arg.Resource, arg.Action)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// PurgeBefore deletes records older than cutoff.
func (s *PGStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectRecords(rows pgx.Rows) ([]rbac.AuditRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (rbac.AuditRecord, error) {
		var (
			rec     rbac.AuditRecord
			role    string
			payload []byte
		)
		if err := row.Scan(&rec.ID, &rec.ActorID, &role, &rec.Action, &rec.Resource, &rec.ResourceID,
			&rec.IsOwner, &rec.At, &rec.RemoteAddr, &rec.UserAgent, &payload); err != nil {
			return rbac.AuditRecord{}, err
		}
		rec.ActorRole = rbac.Role(role)
		if len(payload) > 0 {
			rec.Payload = json.RawMessage(payload)
		}
		return rec, nil
	})
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
