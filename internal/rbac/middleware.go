package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// AccessEvent describes a granted request for the activity trail.
type AccessEvent struct {
	UserID     int64
	Username   string
	Permission string
	Method     string
	Path       string
}

// ActivityRecorder appends granted requests to the audit trail. It runs
// outside the decision path; implementations must never fail the request.
type ActivityRecorder interface {
	RecordAccess(ctx context.Context, event AccessEvent)
}

// DecisionMetrics counts authorization outcomes per module and action.
type DecisionMetrics interface {
	ObserveDecision(module, action, outcome string)
}

// Middleware gates protected routes on the permission checker. Each route
// declares the single (module, action, resource) triple it requires.
type Middleware struct {
	Checker  *Checker
	Logger   *slog.Logger
	Activity ActivityRecorder
	Metrics  DecisionMetrics
}

// Require gates on the module:action wildcard tier.
func (m Middleware) Require(module, action string) func(http.Handler) http.Handler {
	return m.RequireResource(module, action, AnyResource())
}

// RequireResource gates on an exact (module, action, resource) triple.
// Responses distinguish unauthenticated (401), forbidden (403), and a failed
// permission check (500); a deny discloses only the required triple.
func (m Middleware) RequireResource(module, action string, resource Resource) func(http.Handler) http.Handler {
	required := permissionKey(module, action, resource)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				m.observe(module, action, string(ReasonUnauthenticated))
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			decision, err := m.Checker.Authorize(r.Context(), identity.UserID, module, action, resource)
			if err != nil {
				// Fail closed: an errored resolution is never an allow.
				if m.Logger != nil {
					m.Logger.Error("permission check failed",
						slog.Int64("user_id", identity.UserID),
						slog.String("required", required),
						slog.Any("error", err))
				}
				m.observe(module, action, string(ReasonError))
				httpx.Problem(w, http.StatusInternalServerError, "Permission Check Failed", "permission check failed")
				return
			}
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.Int64("user_id", identity.UserID),
						slog.String("required", required),
						slog.String("path", r.URL.Path))
				}
				m.observe(module, action, string(ReasonDenied))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "requires permission "+required)
				return
			}
			m.observe(module, action, string(ReasonGranted))
			next.ServeHTTP(w, r)
			if m.Activity != nil {
				m.Activity.RecordAccess(r.Context(), AccessEvent{
					UserID:     identity.UserID,
					Username:   identity.Username,
					Permission: required,
					Method:     r.Method,
					Path:       r.URL.Path,
				})
			}
		})
	}
}

func (m Middleware) observe(module, action, outcome string) {
	if m.Metrics != nil {
		m.Metrics.ObserveDecision(module, action, outcome)
	}
}
