package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/foundry-erp/foundry-erp/internal/platform/httpx"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Middleware establishes caller identity from the Authorization header before
// any authorization decision is made.
type Middleware struct {
	Tokens   *TokenManager
	Denylist *Denylist
	Repo     Repository
	Logger   *slog.Logger
}

// RequireAuth rejects requests without a valid bearer credential and attaches
// the decoded identity to the request context. Missing and invalid
// credentials produce distinct 401 details.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "malformed authorization header")
			return
		}
		claims, err := m.Tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		if m.Denylist != nil {
			revoked, err := m.Denylist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				// Fail closed rather than honouring a possibly revoked token.
				if m.Logger != nil {
					m.Logger.Error("denylist lookup failed", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Authentication Check Failed", "authentication check failed")
				return
			}
			if revoked {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token revoked")
				return
			}
		}
		if m.Repo != nil {
			user, err := m.Repo.FindByID(r.Context(), claims.UserID)
			if err != nil || !user.IsActive {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "account disabled")
				return
			}
		}
		identity := &shared.Identity{
			UserID:      claims.UserID,
			Username:    claims.Username,
			Role:        claims.Role,
			RoleID:      claims.RoleID,
			Permissions: claims.Permissions,
			TokenID:     claims.ID,
		}
		if claims.ExpiresAt != nil {
			identity.TokenExpiry = claims.ExpiresAt.Time
		}
		ctx := shared.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
