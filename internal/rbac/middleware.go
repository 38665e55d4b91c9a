package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
)

// DecisionRecorder receives one event per guard evaluation.
type DecisionRecorder interface {
	RecordDecision(guard string, code string)
}

// OwnerFunc extracts the owner id of the targeted resource from a request.
type OwnerFunc func(r *http.Request) string

// Middleware wires guards into HTTP handlers. Guard constructors panic on a
// configuration fault, so misconfigured routes fail while the router is built.
type Middleware struct {
	Policy  *Policy
	Logger  *slog.Logger
	Metrics DecisionRecorder
	Now     func() time.Time
}

// Guard runs guards in order against the request identity.
func (m Middleware) Guard(guards ...Guard) func(http.Handler) http.Handler {
	chain := Chain(guards)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			out := chain.Check(IdentityFromContext(ctx))
			if !m.allow(w, r, chainName(guards), out) {
				return
			}
			if out.IsResourceOwner != nil {
				ctx = ContextWithResourceOwnership(ctx, *out.IsResourceOwner)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects anonymous callers.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.Guard(RequireAuthenticated())
}

// RequireRoles ensures the caller holds one of roles.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return m.Guard(Must(m.Policy.RequireRoles(roles...)))
}

// RequireMinimumRole ensures the caller ranks at least minimum.
func (m Middleware) RequireMinimumRole(minimum Role) func(http.Handler) http.Handler {
	return m.Guard(Must(m.Policy.RequireMinimumRole(minimum)))
}

// RequirePermission ensures the caller holds any of actions on resource.
func (m Middleware) RequirePermission(resource string, actions ...string) func(http.Handler) http.Handler {
	return m.Guard(Must(m.Policy.RequirePermission(resource, actions...)))
}

// RequireOwnershipOrMinimumRole allows the resource owner or callers ranked at
// least minimum, and records which path matched in the request context.
func (m Middleware) RequireOwnershipOrMinimumRole(owner OwnerFunc, minimum Role) func(http.Handler) http.Handler {
	if !m.Policy.Hierarchy.Known(string(minimum)) {
		panic(&ConfigError{Component: "guard", Reason: fmt.Sprintf("require ownership: unknown role %q", minimum)})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := IdentityFromContext(ctx)
			var out Outcome
			if id == nil {
				out = Outcome{Denial: notAuthenticated()}
			} else {
				out = m.Policy.CheckOwnership(id, owner(r), minimum)
			}
			if !m.allow(w, r, "ownership", out) {
				return
			}
			ctx = ContextWithResourceOwnership(ctx, *out.IsResourceOwner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuditAction attaches an audit record to the request. It never rejects.
func (m Middleware) AuditAction(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := NewAuditRecord(r, action, resource, m.now())
			next.ServeHTTP(w, r.WithContext(ContextWithAudit(r.Context(), rec)))
		})
	}
}

func (m Middleware) allow(w http.ResponseWriter, r *http.Request, guard string, out Outcome) bool {
	if out.Allowed() {
		if m.Metrics != nil {
			m.Metrics.RecordDecision(guard, "ALLOW")
		}
		return true
	}
	if m.Metrics != nil {
		m.Metrics.RecordDecision(guard, string(out.Denial.Code))
	}
	if m.Logger != nil {
		m.Logger.Info("request denied",
			slog.String("guard", guard),
			slog.String("code", string(out.Denial.Code)),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
		)
	}
	WriteDenial(w, out.Denial)
	return false
}

func chainName(guards []Guard) string {
	if len(guards) == 1 {
		return guards[0].Name()
	}
	return Chain(guards).Name()
}

func (m Middleware) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// WriteDenial renders d as a JSON response.
func WriteDenial(w http.ResponseWriter, d *Denial) {
	httpx.JSON(w, d.Status(), d.Body())
}

// OwnerFromURLParam reads the owner id from a chi route parameter.
func OwnerFromURLParam(name string) OwnerFunc {
	return func(r *http.Request) string {
		return chi.URLParam(r, name)
	}
}

// OwnerFromBodyField reads the owner id from a top-level JSON body field.
// The body is restored in full for the handler. Bodies larger than the audit
// payload cap yield no owner.
func OwnerFromBodyField(field string) OwnerFunc {
	return func(r *http.Request) string {
		if r.Body == nil || r.Body == http.NoBody {
			return ""
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxAuditPayload+1))
		rest := r.Body
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), rest), rest}
		if err != nil || len(data) > maxAuditPayload {
			return ""
		}
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return ""
		}
		owner, _ := body[field].(string)
		return owner
	}
}
