package activity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
	"github.com/foundry-erp/foundry-erp/internal/rbac"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Lister reads back stored entries.
type Lister interface {
	List(ctx context.Context, page, perPage int) ([]Entry, shared.Pagination, error)
}

// Handler serves the activity listing.
type Handler struct {
	logger *slog.Logger
	repo   Lister
	authz  rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Lister, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, authz: authz}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(shared.ModuleActivity, shared.ActionRead))
		r.Get("/", h.listActivity)
	})
}

type entryResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Permission string    `json:"permission"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}
	entries, pagination, err := h.repo.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list activity failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Username:   e.Username,
			Permission: e.Permission,
			Method:     e.Method,
			Path:       e.Path,
			OccurredAt: e.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    out,
		"pagination": pagination,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
