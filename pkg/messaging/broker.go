package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channel names shared between the intake API and the delivery worker.
const (
	ChannelNotificationRaised = "notifications.raised"
	ChannelPushDeliver        = "push.deliver"
)
