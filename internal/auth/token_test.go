package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	roleID := int64(3)
	user := &User{ID: 7, Username: "pat"}

	token, err := manager.Generate(user, PrimaryRole{ID: &roleID, Name: "Operators"}, []string{"orders:read", "orders:update:status"})
	require.NoError(t, err)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "pat", claims.Username)
	assert.Equal(t, "Operators", claims.Role)
	require.NotNil(t, claims.RoleID)
	assert.Equal(t, int64(3), *claims.RoleID)
	assert.Equal(t, []string{"orders:read", "orders:update:status"}, claims.Permissions)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "foundry", claims.Issuer)
}

func TestTokenIDsAreUnique(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	user := &User{ID: 7, Username: "pat"}

	first, err := manager.Generate(user, PrimaryRole{}, nil)
	require.NoError(t, err)
	second, err := manager.Generate(user, PrimaryRole{}, nil)
	require.NoError(t, err)

	firstClaims, err := manager.Verify(first)
	require.NoError(t, err)
	secondClaims, err := manager.Verify(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestTokenExpires(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issued }

	token, err := manager.Generate(&User{ID: 7, Username: "pat"}, PrimaryRole{}, nil)
	require.NoError(t, err)

	manager.now = func() time.Time { return issued.Add(30 * time.Minute) }
	_, err = manager.Verify(token)
	assert.NoError(t, err)

	manager.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = manager.Verify(token)
	assert.Error(t, err)
}

func TestTokenRejectsTampering(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	token, err := manager.Generate(&User{ID: 7, Username: "pat"}, PrimaryRole{}, nil)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	_, err = manager.Verify(tampered)
	assert.Error(t, err)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	token, err := manager.Generate(&User{ID: 7, Username: "pat"}, PrimaryRole{}, nil)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}
