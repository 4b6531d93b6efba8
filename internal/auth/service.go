package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/foundry-erp/foundry-erp/internal/rbac"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// PermissionSource resolves the live permission set embedded as the token
// snapshot at issuance time.
type PermissionSource interface {
	Resolve(ctx context.Context, userID int64) (rbac.PermissionSet, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	tokens      *TokenManager
	denylist    *Denylist
	permissions PermissionSource
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager, denylist *Denylist, permissions PermissionSource) *Service {
	return &Service{repo: repo, tokens: tokens, denylist: denylist, permissions: permissions}
}

// Login validates credentials and issues a signed bearer token carrying the
// identity claims and a permission snapshot.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}
	token, err := s.issue(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		return nil
	}
	return s.denylist.Revoke(ctx, tokenID, expiresAt)
}

// Refresh revokes the old token and issues a fresh one with a current
// permission snapshot, so long as the account is still active.
func (s *Service) Refresh(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) (string, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", shared.ErrUnauthenticated
	}
	if !user.IsActive {
		return "", shared.ErrUnauthenticated
	}
	token, err := s.issue(ctx, user)
	if err != nil {
		return "", err
	}
	if !expiresAt.IsZero() {
		if err := s.denylist.Revoke(ctx, tokenID, expiresAt); err != nil {
			return "", fmt.Errorf("auth: revoke replaced token: %w", err)
		}
	}
	return token, nil
}

func (s *Service) issue(ctx context.Context, user *User) (string, error) {
	role, err := s.repo.PrimaryRole(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("auth: primary role: %w", err)
	}
	set, err := s.permissions.Resolve(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("auth: snapshot permissions: %w", err)
	}
	return s.tokens.Generate(user, role, set.Strings())
}
