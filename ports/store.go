package ports

import (
	"context"

	"github.com/finsight/walletauth/core"
)

// NonceStore persists outstanding SIWE challenges keyed by canonical
// address. It is the only place nonce expiry and reuse are adjudicated.
type NonceStore interface {
	// GetOrCreate returns the live challenge for the address unchanged,
	// or replaces any stale record with a freshly generated one.
	GetOrCreate(ctx context.Context, address string) (*core.Challenge, error)

	// Consume atomically marks the (address, nonce) challenge as used and
	// returns the stored record, including the exact signed message.
	// Exactly one concurrent caller can succeed; the rest observe
	// core.ErrNonceUsed. Fails with core.ErrNonceNotFound or
	// core.ErrNonceExpired as appropriate.
	Consume(ctx context.Context, address, nonce string) (*core.Challenge, error)
}

// WalletStore persists wallet connections. Every operation is scoped by
// (tenantID, userID); rows outside that scope are invisible.
type WalletStore interface {
	// Upsert refreshes an existing (tenant, user, address, chain) row or
	// inserts a new one. The first connection a user verifies in a tenant
	// becomes primary.
	Upsert(ctx context.Context, conn *core.WalletConnection) (*core.WalletConnection, error)

	// List returns the user's connections, primary first, then oldest first.
	List(ctx context.Context, tenantID, userID string) ([]*core.WalletConnection, error)

	// SetPrimary atomically clears the primary flag across the user's
	// connections and sets it on walletID. Returns false if walletID does
	// not belong to (tenantID, userID).
	SetPrimary(ctx context.Context, tenantID, userID, walletID string) (bool, error)

	// Delete removes the connection. Returns false if not found in scope.
	// It never promotes another connection to primary.
	Delete(ctx context.Context, tenantID, userID, walletID string) (bool, error)
}

// UserStore resolves platform users. Wallet verification uses it as the
// tenant-isolation checkpoint.
type UserStore interface {
	// Get returns the user identified by (tenantID, userID), or
	// core.ErrUserNotFound.
	Get(ctx context.Context, tenantID, userID string) (*core.User, error)
}
