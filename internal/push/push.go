// Package push delivers push notifications. The actual provider protocol
// lives behind the gateway consuming the push channel; this package only
// hands messages off.
package push

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/pkg/messaging"
)

// Sender pushes one notification to a user's devices.
type Sender interface {
	Send(ctx context.Context, user *model.User, n *model.Notification) error
}

// Message is the payload published to the push gateway channel.
type Message struct {
	UserID         uuid.UUID         `json:"user_id"`
	NotificationID int64             `json:"notification_id"`
	TopicAction    model.TopicAction `json:"topic_action"`
	Key            string            `json:"key"`
	PayloadRef     string            `json:"payload_ref"`
	RaisedAt       time.Time         `json:"raised_at"`
}

type brokerSender struct {
	broker  messaging.Broker
	channel string
}

// NewBrokerSender publishes push messages to the gateway channel on the
// message broker.
func NewBrokerSender(broker messaging.Broker, channel string) Sender {
	return &brokerSender{broker: broker, channel: channel}
}

func (s *brokerSender) Send(ctx context.Context, user *model.User, n *model.Notification) error {
	return s.broker.Publish(ctx, s.channel, Message{
		UserID:         user.ID,
		NotificationID: n.ID,
		TopicAction:    n.TopicAction,
		Key:            n.Key,
		PayloadRef:     n.PayloadRef,
		RaisedAt:       n.CreatedAt,
	})
}
