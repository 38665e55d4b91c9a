package audit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// Recorder forwards the audit record of each successful request to a Sink.
// Failed requests are not audited.
type Recorder struct {
	Sink   Sink
	Logger *slog.Logger
}

// Middleware wraps next. It is a passthrough when no sink is configured.
func (rc *Recorder) Middleware(next http.Handler) http.Handler {
	if rc == nil || rc.Sink == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, captured := rbac.WithAuditCapture(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		rec := captured()
		if rec == nil {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusBadRequest {
			return
		}
		// The client may already be gone; the write must still happen.
		if err := rc.Sink.Write(context.WithoutCancel(ctx), *rec); err != nil {
			rc.logger().Error("audit write failed",
				slog.String("audit_id", rec.ID),
				slog.String("action", rec.Action),
				slog.Any("error", err),
			)
		}
	})
}

func (rc *Recorder) logger() *slog.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return slog.Default()
}
