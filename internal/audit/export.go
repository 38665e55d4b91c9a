package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

var csvHeader = []string{"id", "occurred_at", "actor_id", "actor_role", "action", "resource", "resource_id", "is_owner", "remote_addr"}

// WriteCSV renders records as CSV with a header row.
func WriteCSV(records []rbac.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		owner := ""
		if rec.IsOwner != nil {
			owner = strconv.FormatBool(*rec.IsOwner)
		}
		row := []string{
			rec.ID,
			rec.At.UTC().Format(time.RFC3339),
			rec.ActorID,
			string(rec.ActorRole),
			rec.Action,
			rec.Resource,
			rec.ResourceID,
			owner,
			rec.RemoteAddr,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
