package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
)

// StatusChannel is the Redis channel carrying transaction status events
const StatusChannel = "remittance-transaction-status"

// StatusPublisher broadcasts record lifecycle changes to interested gateways
type StatusPublisher interface {
	PublishStatusChanged(ctx context.Context, rec *models.TransactionRecord) error
	Close() error
}

// StatusChangedEvent is the JSON payload published on StatusChannel
type StatusChangedEvent struct {
	TxID             string                   `json:"txId"`
	Status           models.TransactionStatus `json:"status"`
	SenderAddress    string                   `json:"senderAddress"`
	RecipientAddress string                   `json:"recipientAddress"`
	Symbol           string                   `json:"symbol"`
	Amount           string                   `json:"amount"`
	ConfirmedRound   *uint64                  `json:"confirmedRound,omitempty"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisClient connects to redisURL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Redis 7 does not support the maint_notifications handshake
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisPublisher connects to redisURL and publishes on the resulting client
func NewRedisPublisher(ctx context.Context, redisURL string) (StatusPublisher, error) {
	client, err := NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return &redisPublisher{client: client}, nil
}

// NewRedisPublisherWithClient wraps an existing client
func NewRedisPublisherWithClient(client *redis.Client) StatusPublisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) PublishStatusChanged(ctx context.Context, rec *models.TransactionRecord) error {
	event := StatusChangedEvent{
		TxID:             rec.TxID,
		Status:           rec.Status,
		SenderAddress:    rec.SenderAddress,
		RecipientAddress: rec.RecipientAddress,
		Symbol:           rec.Symbol,
		Amount:           rec.AmountDisplay().String(),
		ConfirmedRound:   rec.ConfirmedRound,
		UpdatedAt:        rec.UpdatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, StatusChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *redisPublisher) Close() error {
	return p.client.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops events, used when Redis is not configured
func NewNoopPublisher() StatusPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishStatusChanged(ctx context.Context, rec *models.TransactionRecord) error {
	return nil
}

func (noopPublisher) Close() error { return nil }
