package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (in-process) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `envconfig:"TYPE" default:"channel"`

	// Channel settings
	ChannelBufferSize int `envconfig:"CHANNEL_BUFFER_SIZE" default:"1000"`

	// NATS settings
	NATSUrl           string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	NATSToken         string `envconfig:"NATS_TOKEN"`
	NATSMaxReconnects int    `envconfig:"NATS_MAX_RECONNECTS" default:"10"`
	NATSReconnectWait int    `envconfig:"NATS_RECONNECT_WAIT" default:"5"` // seconds
}

// Topic names.
const (
	TopicPlanCalculated = "retirement.plan.calculated"
	TopicCacheRefreshed = "retirement.cache.refreshed"
)

// PlanCalculatedEvent is published after a successful calculation.
type PlanCalculatedEvent struct {
	ID             string `json:"id"`
	CurrentAge     int    `json:"currentAge"`
	RetirementAge  int    `json:"retirementAge"`
	InterestRate   string `json:"interestRate"`
	LifestyleType  string `json:"lifestyleType"`
	MonthlyDeposit string `json:"monthlyDeposit"`
	FutureValue    string `json:"futureValue"`
	CalculatedAt   int64  `json:"calculatedAt"` // unix millis
}

// CacheRefreshedEvent is published after a successful cache refresh.
type CacheRefreshedEvent struct {
	Keys   []string `json:"keys"`
	All    bool     `json:"all"`
	Loaded int      `json:"loaded"`
}
