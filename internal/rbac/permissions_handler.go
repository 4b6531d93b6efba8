package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// PermissionsHandler serves the permission catalog and the caller's own set.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	checker *Checker
	authz   Middleware
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, checker *Checker, authz Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, checker: checker, authz: authz}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require(shared.ModulePermissions, shared.ActionRead)).Get("/", h.listPermissions)
	r.Get("/mine", h.myPermissions)
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Permission  string `json:"permission"`
	Description string `json:"description,omitempty"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Permission: p.String(), Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// myPermissions resolves the caller's live permission set. Unlike the token
// snapshot this reflects revocations immediately (bounded by the cache TTL).
func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	set, err := h.checker.Resolve(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("resolve own permissions", slog.Int64("user_id", identity.UserID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Permission Check Failed", "permission check failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":     identity.UserID,
		"permissions": set.Strings(),
	})
}
