package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/jackc/pgx/v5"
)

// PostgresUserStore resolves users from the users table.
type PostgresUserStore struct {
	db *Postgres
}

// NewPostgresUserStore creates a user store backed by Postgres.
func NewPostgresUserStore(db *Postgres) ports.UserStore {
	return &PostgresUserStore{db: db}
}

// Get returns the user identified by (tenantID, userID). A user that
// exists in a different tenant is indistinguishable from one that does
// not exist at all.
func (s *PostgresUserStore) Get(ctx context.Context, tenantID, userID string) (*core.User, error) {
	query := `
		SELECT id, tenant_id, email, name, created_at
		FROM users
		WHERE tenant_id = $1 AND id = $2
	`

	var user core.User
	err := s.db.pool.QueryRow(ctx, query, tenantID, userID).Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
