package tokenizer

import "github.com/golang-jwt/jwt/v5"

// WalletClaims combines standard claims with the wallet-scoped claim set.
// The Type discriminator keeps wallet tokens from being confused with any
// other credential kind signed by the same secret.
type WalletClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Address  string `json:"wallet_address"`
	ChainID  int64  `json:"chain_id"`
	Type     string `json:"type"`
}
