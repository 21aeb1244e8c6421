package siwe

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/finsight/walletauth/core"
)

// Default challenge parameters, overridable through the builder fields.
const (
	DefaultDomain    = "finsight.app"
	DefaultURI       = "https://finsight.app"
	DefaultStatement = "Connect your wallet to FinSight Platform for secure, self-custody portfolio tracking."
	DefaultNonceTTL  = 5 * time.Minute

	nonceEntropyBytes = 32
)

// ChallengeBuilder produces SIWE sign-in challenges. The generated message
// is a wire contract: it is stored verbatim next to the nonce and the
// stored copy is what gets verified, never a reconstruction.
type ChallengeBuilder struct {
	Domain    string
	URI       string
	Statement string
	ChainID   int64
	TTL       time.Duration
	Clock     core.Clock
}

// NewChallengeBuilder returns a builder with sensible defaults for any
// zero-valued field.
func NewChallengeBuilder(domain, uri, statement string, chainID int64, ttl time.Duration, clock core.Clock) *ChallengeBuilder {
	if domain == "" {
		domain = DefaultDomain
	}
	if uri == "" {
		uri = DefaultURI
	}
	if statement == "" {
		statement = DefaultStatement
	}
	if chainID == 0 {
		chainID = 1
	}
	if ttl == 0 {
		ttl = DefaultNonceTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &ChallengeBuilder{
		Domain:    domain,
		URI:       uri,
		Statement: statement,
		ChainID:   chainID,
		TTL:       ttl,
		Clock:     clock,
	}
}

// Generate creates a fresh challenge for a canonical address.
func (b *ChallengeBuilder) Generate(address string) (*core.Challenge, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := b.Clock.Now()
	return &core.Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   b.message(address, nonce, now),
		IssuedAt:  now,
		ExpiresAt: now.Add(b.TTL),
	}, nil
}

// message renders the EIP-4361 sign-in message. Newlines and casing are
// significant; the wallet signs these exact bytes.
func (b *ChallengeBuilder) message(address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(`%s wants you to sign in with your Ethereum account:
%s

%s

URI: %s
Version: 1
Chain ID: %d
Nonce: %s
Issued At: %s`,
		b.Domain, address, b.Statement, b.URI, b.ChainID, nonce,
		issuedAt.Format(time.RFC3339))
}

// generateNonce returns a URL-safe token with 256 bits of entropy.
func generateNonce() (string, error) {
	bytes := make([]byte, nonceEntropyBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
