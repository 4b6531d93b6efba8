package activity_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/activity"
	"github.com/foundry-erp/foundry-erp/internal/rbac"
	"github.com/foundry-erp/foundry-erp/internal/shared"
	_ "github.com/foundry-erp/foundry-erp/testing"
)

type stubLister struct {
	entries []activity.Entry

	gotPage    int
	gotPerPage int
}

func (s *stubLister) List(ctx context.Context, page, perPage int) ([]activity.Entry, shared.Pagination, error) {
	s.gotPage = page
	s.gotPerPage = perPage
	return s.entries, shared.NewPagination(page, perPage, len(s.entries)), nil
}

type staticResolver struct {
	set rbac.PermissionSet
}

func (r staticResolver) UserPermissions(ctx context.Context, userID int64) (rbac.PermissionSet, error) {
	return r.set, nil
}

func newActivityRouter(t *testing.T, lister *stubLister, perms ...string) http.Handler {
	t.Helper()
	set, err := rbac.ParsePermissionSet(perms)
	require.NoError(t, err)
	checker := rbac.NewChecker(staticResolver{set: set}, rbac.NewCache(time.Minute))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := activity.NewHandler(logger, lister, rbac.Middleware{Checker: checker, Logger: logger})

	router := chi.NewRouter()
	router.Route("/api/activity", handler.MountRoutes)
	return router
}

func listAs(t *testing.T, router http.Handler, userID int64, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	identity := &shared.Identity{UserID: userID, Username: "tester"}
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), identity))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListActivity(t *testing.T) {
	lister := &stubLister{entries: []activity.Entry{
		{ID: 2, UserID: 7, Username: "pat", Permission: "orders:read", Method: "GET", Path: "/api/orders", OccurredAt: time.Now()},
		{ID: 1, UserID: 7, Username: "pat", Permission: "roles:read", Method: "GET", Path: "/api/roles", OccurredAt: time.Now().Add(-time.Minute)},
	}}
	router := newActivityRouter(t, lister, "activity:read")

	rr := listAs(t, router, 7, "/api/activity/")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Entries []struct {
			ID         int64  `json:"id"`
			Permission string `json:"permission"`
		} `json:"entries"`
		Pagination struct {
			Page  int `json:"page"`
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(2), resp.Entries[0].ID)
	assert.Equal(t, "orders:read", resp.Entries[0].Permission)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 2, resp.Pagination.Total)
}

func TestListActivityRequiresPermission(t *testing.T) {
	router := newActivityRouter(t, &stubLister{})

	rr := listAs(t, router, 7, "/api/activity/")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListActivityPagingParams(t *testing.T) {
	lister := &stubLister{}
	router := newActivityRouter(t, lister, "activity:read")

	rr := listAs(t, router, 7, "/api/activity/?page=3&per_page=50")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, lister.gotPage)
	assert.Equal(t, 50, lister.gotPerPage)

	// Broken or oversized params fall back to sane values.
	rr = listAs(t, router, 7, "/api/activity/?page=-1&per_page=9999")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, lister.gotPage)
	assert.Equal(t, 100, lister.gotPerPage)
}
