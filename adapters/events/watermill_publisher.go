package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/google/uuid"
)

// Topics for wallet lifecycle events.
const (
	TopicConnected      = "wallet.connected"
	TopicPrimaryChanged = "wallet.primary_changed"
	TopicDisconnected   = "wallet.disconnected"
)

// ConnectedEvent is published after a wallet is verified and bound.
type ConnectedEvent struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	WalletID  string `json:"wallet_id"`
	Address   string `json:"wallet_address"`
	ChainID   int64  `json:"chain_id"`
	IsPrimary bool   `json:"is_primary"`
}

// WalletEvent is published for primary changes and disconnections.
type WalletEvent struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishConnected publishes a wallet.connected event.
func (p *WatermillPublisher) PublishConnected(ctx context.Context, conn *core.WalletConnection) error {
	return p.publish(TopicConnected, ConnectedEvent{
		TenantID:  conn.TenantID,
		UserID:    conn.UserID,
		WalletID:  conn.ID,
		Address:   conn.Address,
		ChainID:   conn.ChainID,
		IsPrimary: conn.IsPrimary,
	})
}

// PublishPrimaryChanged publishes a wallet.primary_changed event.
func (p *WatermillPublisher) PublishPrimaryChanged(ctx context.Context, tenantID, userID, walletID string) error {
	return p.publish(TopicPrimaryChanged, WalletEvent{
		TenantID: tenantID,
		UserID:   userID,
		WalletID: walletID,
	})
}

// PublishDisconnected publishes a wallet.disconnected event.
func (p *WatermillPublisher) PublishDisconnected(ctx context.Context, tenantID, userID, walletID string) error {
	return p.publish(TopicDisconnected, WalletEvent{
		TenantID: tenantID,
		UserID:   userID,
		WalletID: walletID,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that drops everything.
func NewNopPublisher() ports.EventPublisher {
	return NopPublisher{}
}

func (NopPublisher) PublishConnected(ctx context.Context, conn *core.WalletConnection) error {
	return nil
}

func (NopPublisher) PublishPrimaryChanged(ctx context.Context, tenantID, userID, walletID string) error {
	return nil
}

func (NopPublisher) PublishDisconnected(ctx context.Context, tenantID, userID, walletID string) error {
	return nil
}
