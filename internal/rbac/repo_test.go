package rbac

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/foundry-erp/foundry-erp/internal/shared"
)

func TestMapConstraint(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "roles_name_key"}
	assert.ErrorIs(t, mapConstraint(dup), shared.ErrDuplicate)
	assert.ErrorIs(t, mapConstraint(fmt.Errorf("insert role: %w", dup)), shared.ErrDuplicate)

	// A foreign-key violation means the referenced row does not exist, e.g.
	// granting a permission id that was never created.
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "role_permissions_permission_id_fkey"}
	assert.ErrorIs(t, mapConstraint(fk), shared.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapConstraint(other))
	unhandled := &pgconn.PgError{Code: "23514"}
	assert.Equal(t, error(unhandled), mapConstraint(unhandled))
}

func TestScanResource(t *testing.T) {
	star := "*"
	empty := ""
	status := "status"

	assert.True(t, scanResource(nil).IsAny())
	assert.True(t, scanResource(&star).IsAny())
	assert.True(t, scanResource(&empty).IsAny())

	got := scanResource(&status)
	assert.False(t, got.IsAny())
	assert.Equal(t, "status", got.Name())
}
