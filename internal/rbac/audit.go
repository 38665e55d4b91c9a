package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxAuditPayload = 64 << 10

var redactedPayloadFields = []string{"password", "currentPassword", "newPassword", "token", "refreshToken"}

// AuditRecord describes a privileged action for the audit log.
type AuditRecord struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId,omitempty"`
	ActorRole  Role            `json:"actorRole,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resourceId,omitempty"`
	IsOwner    *bool           `json:"isOwner,omitempty"`
	At         time.Time       `json:"at"`
	RemoteAddr string          `json:"remoteAddr,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type auditContextKey struct{}

type auditCaptureKey struct{}

type auditCapture struct {
	record *AuditRecord
}

// ContextWithAudit stores rec in context.
func ContextWithAudit(ctx context.Context, rec *AuditRecord) context.Context {
	if capture, ok := ctx.Value(auditCaptureKey{}).(*auditCapture); ok {
		capture.record = rec
	}
	return context.WithValue(ctx, auditContextKey{}, rec)
}

// AuditFromContext returns the record attached to the request, or nil.
func AuditFromContext(ctx context.Context) *AuditRecord {
	rec, _ := ctx.Value(auditContextKey{}).(*AuditRecord)
	return rec
}

// WithAuditCapture lets an outer middleware read the record an inner
// AuditAction attached after the handler returns.
func WithAuditCapture(ctx context.Context) (context.Context, func() *AuditRecord) {
	capture := &auditCapture{}
	return context.WithValue(ctx, auditCaptureKey{}, capture), func() *AuditRecord {
		return capture.record
	}
}

// NewAuditRecord snapshots the request for the audit log. It never fails;
// anything it cannot determine is left empty.
func NewAuditRecord(r *http.Request, action, resource string, now time.Time) *AuditRecord {
	rec := &AuditRecord{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceIDFromRequest(r),
		At:         now.UTC(),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Payload:    snapshotPayload(r),
	}
	if id, err := uuid.NewRandom(); err == nil {
		rec.ID = id.String()
	}
	if ident := IdentityFromContext(r.Context()); ident != nil {
		rec.ActorID = ident.Subject
		rec.ActorRole = ident.Role
	}
	if isOwner, ok := IsResourceOwner(r.Context()); ok {
		rec.IsOwner = &isOwner
	}
	return rec
}

func resourceIDFromRequest(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if id := rctx.URLParam("id"); id != "" {
		return id
	}
	keys := rctx.URLParams.Keys
	for i := len(keys) - 1; i >= 0; i-- {
		if strings.HasSuffix(keys[i], "ID") && i < len(rctx.URLParams.Values) {
			return rctx.URLParams.Values[i]
		}
	}
	return ""
}

// snapshotPayload copies a JSON body and restores it for the handler.
// Credentials are dropped from the copy.
func snapshotPayload(r *http.Request) json.RawMessage {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAuditPayload+1))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), rest), rest}
	if err != nil || len(data) == 0 || len(data) > maxAuditPayload {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil
	}
	for _, field := range redactedPayloadFields {
		delete(body, field)
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return out
}
