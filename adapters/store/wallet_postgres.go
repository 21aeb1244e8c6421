package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, tenant_id, user_id, address, chain_id, wallet_kind,
	label, is_primary, verified_at, last_used_at, created_at, metadata`

// PostgresWalletStore persists wallet connections in Postgres. The
// (tenant_id, user_id, address, chain_id) uniqueness and the one-primary-
// per-user invariant are backed by database indexes; see migrations.
type PostgresWalletStore struct {
	db    *Postgres
	clock core.Clock
}

// NewPostgresWalletStore creates a wallet registry backed by Postgres.
func NewPostgresWalletStore(db *Postgres, clock core.Clock) ports.WalletStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &PostgresWalletStore{db: db, clock: clock}
}

// Upsert refreshes the verification timestamps of an existing connection
// or inserts a new one, making the user's first connection primary.
func (s *PostgresWalletStore) Upsert(ctx context.Context, conn *core.WalletConnection) (*core.WalletConnection, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.clock.Now()

	update := `
		UPDATE wallet_connections
		SET verified_at = $5,
		    last_used_at = $5,
		    wallet_kind = $6,
		    label = COALESCE(NULLIF($7, ''), label)
		WHERE tenant_id = $1 AND user_id = $2 AND address = $3 AND chain_id = $4
		RETURNING ` + walletColumns

	updated, err := scanWallet(tx.QueryRow(ctx, update,
		conn.TenantID, conn.UserID, conn.Address, conn.ChainID,
		now, conn.WalletKind, conn.Label,
	))
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit upsert: %w", err)
		}
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update wallet connection: %w", err)
	}

	var count int
	countQuery := `
		SELECT COUNT(*) FROM wallet_connections
		WHERE tenant_id = $1 AND user_id = $2
	`
	if err := tx.QueryRow(ctx, countQuery, conn.TenantID, conn.UserID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count wallet connections: %w", err)
	}

	label := conn.Label
	if label == "" {
		label = defaultLabel(conn.WalletKind)
	}
	metadata := conn.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	insert := `
		INSERT INTO wallet_connections
			(id, tenant_id, user_id, address, chain_id, wallet_kind,
			 label, is_primary, verified_at, last_used_at, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9, $10)
		RETURNING ` + walletColumns

	inserted, err := scanWallet(tx.QueryRow(ctx, insert,
		uuid.NewString(), conn.TenantID, conn.UserID, conn.Address, conn.ChainID,
		conn.WalletKind, label, count == 0, now, metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet connection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return inserted, nil
}

// List returns the user's connections, primary first, then oldest first.
func (s *PostgresWalletStore) List(ctx context.Context, tenantID, userID string) ([]*core.WalletConnection, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallet_connections
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY is_primary DESC, created_at ASC
	`

	rows, err := s.db.pool.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet connections: %w", err)
	}
	defer rows.Close()

	var conns []*core.WalletConnection
	for rows.Next() {
		conn, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet connection: %w", err)
		}
		conns = append(conns, conn)
	}

	return conns, rows.Err()
}

// SetPrimary performs the clear-then-set inside one transaction so no
// reader ever observes zero or two primaries.
func (s *PostgresWalletStore) SetPrimary(ctx context.Context, tenantID, userID, walletID string) (bool, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	clear := `
		UPDATE wallet_connections
		SET is_primary = FALSE
		WHERE tenant_id = $1 AND user_id = $2 AND is_primary = TRUE
	`
	if _, err := tx.Exec(ctx, clear, tenantID, userID); err != nil {
		return false, fmt.Errorf("failed to clear primary flag: %w", err)
	}

	set := `
		UPDATE wallet_connections
		SET is_primary = TRUE
		WHERE id = $1 AND tenant_id = $2 AND user_id = $3
	`
	tag, err := tx.Exec(ctx, set, walletID, tenantID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to set primary flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Unknown or foreign wallet: roll back so the old primary survives.
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit primary change: %w", err)
	}
	return true, nil
}

// Delete removes the connection. It deliberately does not promote another
// connection to primary; the user may be left with none.
func (s *PostgresWalletStore) Delete(ctx context.Context, tenantID, userID, walletID string) (bool, error) {
	query := `
		DELETE FROM wallet_connections
		WHERE id = $1 AND tenant_id = $2 AND user_id = $3
	`

	tag, err := s.db.pool.Exec(ctx, query, walletID, tenantID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete wallet connection: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanWallet(row pgx.Row) (*core.WalletConnection, error) {
	var conn core.WalletConnection
	err := row.Scan(
		&conn.ID,
		&conn.TenantID,
		&conn.UserID,
		&conn.Address,
		&conn.ChainID,
		&conn.WalletKind,
		&conn.Label,
		&conn.IsPrimary,
		&conn.VerifiedAt,
		&conn.LastUsedAt,
		&conn.CreatedAt,
		&conn.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
