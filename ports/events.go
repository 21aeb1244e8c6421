package ports

import (
	"context"

	"github.com/finsight/walletauth/core"
)

// EventPublisher notifies other services about wallet lifecycle changes.
type EventPublisher interface {
	PublishConnected(ctx context.Context, conn *core.WalletConnection) error
	PublishPrimaryChanged(ctx context.Context, tenantID, userID, walletID string) error
	PublishDisconnected(ctx context.Context, tenantID, userID, walletID string) error
}
