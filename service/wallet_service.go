package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/internal/metrics"
	"github.com/finsight/walletauth/ports"
)

// WalletService orchestrates the two-step SIWE connect flow and the
// wallet connection lifecycle. It owns no state of its own; all durable
// state lives behind the store ports.
type WalletService struct {
	nonces    ports.NonceStore
	wallets   ports.WalletStore
	users     ports.UserStore
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
}

// NewWalletService creates a new wallet authentication service.
func NewWalletService(
	nonces ports.NonceStore,
	wallets ports.WalletStore,
	users ports.UserStore,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
) *WalletService {
	return &WalletService{
		nonces:    nonces,
		wallets:   wallets,
		users:     users,
		tokenizer: tokenizer,
		eventPub:  eventPub,
	}
}

// ConnectResult is what a successful verification returns: the durable
// binding plus a fresh wallet-scoped credential.
type ConnectResult struct {
	Wallet *core.WalletConnection
	Token  string
	Claims *core.WalletCredential
}

// RequestChallenge normalizes the address and returns its live challenge,
// minting one if needed. Idempotent while the challenge is unexpired and
// unused.
func (s *WalletService) RequestChallenge(ctx context.Context, rawAddress string) (*core.Challenge, error) {
	address, err := siwe.NormalizeAddress(rawAddress)
	if err != nil {
		return nil, err
	}

	challenge, err := s.nonces.GetOrCreate(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}

	metrics.ChallengesIssued.Inc()
	return challenge, nil
}

// VerifyAndConnect verifies proof of control over the address and binds it
// to the (tenant, user) scope. The nonce is burned when presented, before
// the signature is checked: a failed signature cannot be retried with the
// same nonce.
func (s *WalletService) VerifyAndConnect(
	ctx context.Context,
	tenantID, userID, rawAddress, signature, nonce string,
	chainID int64,
	walletKind, label string,
) (*ConnectResult, error) {
	address, err := siwe.NormalizeAddress(rawAddress)
	if err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	// Tenant-isolation checkpoint: the user must exist in this tenant.
	if _, err := s.users.Get(ctx, tenantID, userID); err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultUserNotFound).Inc()
		return nil, err
	}

	challenge, err := s.nonces.Consume(ctx, address, nonce)
	if err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultNonceRejected).Inc()
		return nil, err
	}

	// The stored message is verified verbatim; rebuilding it here would
	// drift the issued-at timestamp and break every correct signature.
	ok, err := siwe.VerifySignature(address, challenge.Message, signature)
	if err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultInvalidSignature).Inc()
		return nil, err
	}
	if !ok {
		metrics.Verifications.WithLabelValues(metrics.ResultInvalidSignature).Inc()
		return nil, core.ErrInvalidSignature
	}

	conn, err := s.wallets.Upsert(ctx, &core.WalletConnection{
		TenantID:   tenantID,
		UserID:     userID,
		Address:    address,
		ChainID:    chainID,
		WalletKind: walletKind,
		Label:      label,
	})
	if err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to register wallet connection: %w", err)
	}

	claims := &core.WalletCredential{
		TenantID: conn.TenantID,
		UserID:   conn.UserID,
		WalletID: conn.ID,
		Address:  conn.Address,
		ChainID:  conn.ChainID,
	}

	token, err := s.tokenizer.CredentialToToken(claims)
	if err != nil {
		metrics.Verifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	if err := s.eventPub.PublishConnected(ctx, conn); err != nil {
		// The binding and credential are already durable; a lost event is
		// not worth failing the connect over.
		slog.Warn("failed to publish wallet.connected event", "error", err)
	}

	metrics.Verifications.WithLabelValues(metrics.ResultConnected).Inc()
	return &ConnectResult{Wallet: conn, Token: token, Claims: claims}, nil
}

// ListWallets returns the user's connections, primary first.
func (s *WalletService) ListWallets(ctx context.Context, tenantID, userID string) ([]*core.WalletConnection, error) {
	conns, err := s.wallets.List(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet connections: %w", err)
	}
	return conns, nil
}

// SetPrimary makes walletID the user's primary connection.
func (s *WalletService) SetPrimary(ctx context.Context, tenantID, userID, walletID string) error {
	ok, err := s.wallets.SetPrimary(ctx, tenantID, userID, walletID)
	if err != nil {
		return fmt.Errorf("failed to set primary wallet: %w", err)
	}
	if !ok {
		return core.ErrWalletNotFound
	}

	if err := s.eventPub.PublishPrimaryChanged(ctx, tenantID, userID, walletID); err != nil {
		slog.Warn("failed to publish wallet.primary_changed event", "error", err)
	}
	return nil
}

// Disconnect removes a wallet connection. Deleting the primary leaves the
// user with no primary; nothing is auto-promoted.
func (s *WalletService) Disconnect(ctx context.Context, tenantID, userID, walletID string) error {
	ok, err := s.wallets.Delete(ctx, tenantID, userID, walletID)
	if err != nil {
		return fmt.Errorf("failed to disconnect wallet: %w", err)
	}
	if !ok {
		return core.ErrWalletNotFound
	}

	if err := s.eventPub.PublishDisconnected(ctx, tenantID, userID, walletID); err != nil {
		slog.Warn("failed to publish wallet.disconnected event", "error", err)
	}
	return nil
}

// ValidateToken checks a wallet credential and returns its claims.
func (s *WalletService) ValidateToken(ctx context.Context, token string) (*core.WalletCredential, error) {
	return s.tokenizer.TokenToCredential(token)
}
