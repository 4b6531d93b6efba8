package activity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for activity entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a single entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO activity_logs (user_id, username, permission, method, path, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.UserID, e.Username, e.Permission, e.Method, e.Path, e.OccurredAt)
	return err
}

// List returns entries newest first with pagination metadata.
func (r *Repository) List(ctx context.Context, page, perPage int) ([]Entry, shared.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, username, permission, method, path, occurred_at
FROM activity_logs
ORDER BY occurred_at DESC, id DESC
LIMIT $1 OFFSET $2`, meta.PerPage, meta.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Permission, &e.Method, &e.Path, &e.OccurredAt); err != nil {
			return nil, shared.Pagination{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, meta, nil
}
