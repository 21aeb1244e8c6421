package core

import "time"

// Challenge is an outstanding SIWE sign-in challenge for one address.
// The Message field holds the exact byte sequence the wallet signs; it is
// persisted verbatim and reused during verification, never rebuilt.
type Challenge struct {
	Address   string    // Canonical (EIP-55) Ethereum address
	Nonce     string    // Single-use random token bound to this challenge
	Message   string    // Full SIWE message presented to the wallet
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being acceptable
	Used      bool      // Set once the nonce has been presented
}

// Expired reports whether the challenge is past its expiry at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// WalletConnection is a durable, verified binding between a tenant-scoped
// user and a wallet address on one chain. Private key material is never
// stored; the address and proof-of-control timestamps are all we keep.
type WalletConnection struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	UserID     string            `json:"user_id"`
	Address    string            `json:"wallet_address"`
	ChainID    int64             `json:"chain_id"`
	WalletKind string            `json:"wallet_type"`
	Label      string            `json:"label,omitempty"`
	IsPrimary  bool              `json:"is_primary"`
	VerifiedAt time.Time         `json:"verified_at"`
	LastUsedAt time.Time         `json:"last_used_at"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// User identifies a platform user within a tenant. Wallet connections are
// owned by the user and scoped by (TenantID, ID) everywhere.
type User struct {
	ID        string
	TenantID  string
	Email     string
	Name      string
	CreatedAt time.Time
}

// WalletCredential is the issued session credential for a verified wallet.
// It is ephemeral: only the signed token leaves the process, and expiry is
// the sole invalidation mechanism.
type WalletCredential struct {
	TenantID  string
	UserID    string
	WalletID  string
	Address   string
	ChainID   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}
