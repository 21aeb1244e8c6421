package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/jackc/pgx/v5"
)

// PostgresNonceStore persists SIWE challenges in the wallet_nonces table.
// At most one row exists per address.
type PostgresNonceStore struct {
	db      *Postgres
	builder *siwe.ChallengeBuilder
	clock   core.Clock
}

// NewPostgresNonceStore creates a nonce store backed by Postgres.
func NewPostgresNonceStore(db *Postgres, builder *siwe.ChallengeBuilder, clock core.Clock) ports.NonceStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &PostgresNonceStore{db: db, builder: builder, clock: clock}
}

// GetOrCreate returns the live challenge for the address unchanged, so
// repeated requests keep getting the same message to sign. Stale rows
// (used or expired) are dropped and replaced with a fresh challenge.
func (s *PostgresNonceStore) GetOrCreate(ctx context.Context, address string) (*core.Challenge, error) {
	query := `
		SELECT address, nonce, message, issued_at, expires_at, used
		FROM wallet_nonces
		WHERE address = $1
	`

	var existing core.Challenge
	err := s.db.pool.QueryRow(ctx, query, address).Scan(
		&existing.Address,
		&existing.Nonce,
		&existing.Message,
		&existing.IssuedAt,
		&existing.ExpiresAt,
		&existing.Used,
	)
	if err == nil {
		if !existing.Used && !existing.Expired(s.clock.Now()) {
			return &existing, nil
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up nonce: %w", err)
	}

	challenge, err := s.builder.Generate(address)
	if err != nil {
		return nil, err
	}

	// Replacing the row invalidates any stale nonce for the address; the
	// single-row-per-address shape keeps the at-most-one-live invariant.
	upsert := `
		INSERT INTO wallet_nonces (address, nonce, message, issued_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (address) DO UPDATE
		SET nonce = EXCLUDED.nonce,
		    message = EXCLUDED.message,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at,
		    used = FALSE
	`

	_, err = s.db.pool.Exec(ctx, upsert,
		challenge.Address,
		challenge.Nonce,
		challenge.Message,
		challenge.IssuedAt,
		challenge.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return challenge, nil
}

// Consume burns the (address, nonce) challenge with a single conditional
// update, so with concurrent callers exactly one observes success.
func (s *PostgresNonceStore) Consume(ctx context.Context, address, nonce string) (*core.Challenge, error) {
	now := s.clock.Now()

	burn := `
		UPDATE wallet_nonces
		SET used = TRUE
		WHERE address = $1 AND nonce = $2 AND used = FALSE AND expires_at > $3
		RETURNING address, nonce, message, issued_at, expires_at
	`

	challenge := core.Challenge{Used: true}
	err := s.db.pool.QueryRow(ctx, burn, address, nonce, now).Scan(
		&challenge.Address,
		&challenge.Nonce,
		&challenge.Message,
		&challenge.IssuedAt,
		&challenge.ExpiresAt,
	)
	if err == nil {
		return &challenge, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	// The conditional update missed; classify why.
	classify := `
		SELECT used, expires_at
		FROM wallet_nonces
		WHERE address = $1 AND nonce = $2
	`

	var used bool
	var expiresAt = now
	err = s.db.pool.QueryRow(ctx, classify, address, nonce).Scan(&used, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNonceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to classify nonce failure: %w", err)
	}
	if used {
		return nil, core.ErrNonceUsed
	}
	return nil, core.ErrNonceExpired
}
