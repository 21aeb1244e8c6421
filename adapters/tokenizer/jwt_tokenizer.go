package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/golang-jwt/jwt/v5"
)

// TypeWallet is the type discriminator carried by every wallet credential.
const TypeWallet = "wallet"

// DefaultCredentialTTL is how long an issued wallet credential stays valid.
const DefaultCredentialTTL = 24 * time.Hour

// JWTTokenizer implements the Tokenizer interface with HS256-signed JWTs
// over a server-held symmetric secret.
type JWTTokenizer struct {
	secret []byte
	ttl    time.Duration
	clock  core.Clock
}

// NewJWTTokenizer creates a tokenizer. The secret and clock are injected
// so tests can run with fixed keys and deterministic time.
func NewJWTTokenizer(secret []byte, ttl time.Duration, clock core.Clock) ports.Tokenizer {
	if ttl == 0 {
		ttl = DefaultCredentialTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &JWTTokenizer{secret: secret, ttl: ttl, clock: clock}
}

// CredentialToToken mints a signed wallet token. IssuedAt and ExpiresAt on
// the credential are filled in from the tokenizer's clock and TTL.
func (j *JWTTokenizer) CredentialToToken(cred *core.WalletCredential) (string, error) {
	now := j.clock.Now()
	cred.IssuedAt = now
	cred.ExpiresAt = now.Add(j.ttl)

	claims := WalletClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.UserID,
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
		},
		TenantID: cred.TenantID,
		UserID:   cred.UserID,
		WalletID: cred.WalletID,
		Address:  cred.Address,
		ChainID:  cred.ChainID,
		Type:     TypeWallet,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign wallet token: %w", err)
	}

	return signedToken, nil
}

// TokenToCredential validates a wallet token and returns its claims. All
// failure modes collapse to an error with a nil credential: expiry, bad
// signature, non-HMAC signing method, and wrong type discriminator.
func (j *JWTTokenizer) TokenToCredential(tokenStr string) (*core.WalletCredential, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &WalletClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.clock.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrInvalidToken
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*WalletClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	// Reject validly signed tokens of any other kind.
	if claims.Type != TypeWallet {
		return nil, core.ErrInvalidToken
	}

	return &core.WalletCredential{
		TenantID:  claims.TenantID,
		UserID:    claims.UserID,
		WalletID:  claims.WalletID,
		Address:   claims.Address,
		ChainID:   claims.ChainID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
