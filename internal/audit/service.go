package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// TimelineParams are the query arguments shared by window and export reads.
type TimelineParams struct {
	FromAt     pgtype.Timestamptz
	ToAt       pgtype.Timestamptz
	Actor      pgtype.Text
	Resource   pgtype.Text
	Action     pgtype.Text
	OffsetRows int32
	LimitRows  int32
}

// Repository provides read access to stored audit records.
type Repository interface {
	TimelineWindow(ctx context.Context, arg TimelineParams) ([]rbac.AuditRecord, error)
	TimelineAll(ctx context.Context, arg TimelineParams) ([]rbac.AuditRecord, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit records, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := baseParams(filters)
	params.OffsetRows = int32((page - 1) * pageSize)
	params.LimitRows = int32(pageSize + 1)

	rows, err := s.repo.TimelineWindow(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []rbac.AuditRecord{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching record without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]rbac.AuditRecord, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.TimelineAll(ctx, baseParams(filters))
}

func baseParams(filters TimelineFilters) TimelineParams {
	return TimelineParams{
		FromAt:   toPgTime(filters.From),
		ToAt:     toPgTime(filters.To),
		Actor:    optionalText(filters.Actor),
		Resource: optionalText(filters.Resource),
		Action:   optionalText(filters.Action),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
