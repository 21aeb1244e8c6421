package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/finsight/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishConnected(t *testing.T) {
	ps := newPubSub(t)
	ctx := context.Background()

	messages, err := ps.Subscribe(ctx, TopicConnected)
	require.NoError(t, err)

	pub := NewWatermillPublisher(ps)
	err = pub.PublishConnected(ctx, &core.WalletConnection{
		ID:        "w1",
		TenantID:  "t1",
		UserID:    "u1",
		Address:   "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ChainID:   1,
		IsPrimary: true,
	})
	require.NoError(t, err)

	msg := receive(t, messages)
	assert.NotEmpty(t, msg.UUID)

	var event ConnectedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, "t1", event.TenantID)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "w1", event.WalletID)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", event.Address)
	assert.Equal(t, int64(1), event.ChainID)
	assert.True(t, event.IsPrimary)
}

func TestPublishLifecycleEvents(t *testing.T) {
	ps := newPubSub(t)
	ctx := context.Background()

	primaries, err := ps.Subscribe(ctx, TopicPrimaryChanged)
	require.NoError(t, err)
	drops, err := ps.Subscribe(ctx, TopicDisconnected)
	require.NoError(t, err)

	pub := NewWatermillPublisher(ps)

	require.NoError(t, pub.PublishPrimaryChanged(ctx, "t1", "u1", "w2"))
	msg := receive(t, primaries)
	var event WalletEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, WalletEvent{TenantID: "t1", UserID: "u1", WalletID: "w2"}, event)

	require.NoError(t, pub.PublishDisconnected(ctx, "t1", "u1", "w2"))
	msg = receive(t, drops)
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, "w2", event.WalletID)
}
