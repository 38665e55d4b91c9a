package audit

import (
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// TimelineFilters holds the filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Resource string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps one timeline page.
type Result struct {
	Rows   []rbac.AuditRecord `json:"rows"`
	Paging PagingInfo         `json:"paging"`
}
