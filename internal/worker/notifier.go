package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/model"
)

// Notifier tells the customer their order was received.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *model.Order) error
}

// LogNotifier records confirmations in the log instead of delivering them.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OrderConfirmed(_ context.Context, order *model.Order) error {
	n.log.Info("order confirmation",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	return nil
}

// ProcessedStore remembers which messages were already handled.
type ProcessedStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	return &RedisProcessedStore{client: client, ttl: ttl}
}

func (s *RedisProcessedStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check processed key: %w", err)
	}
	return n > 0, nil
}

func (s *RedisProcessedStore) Mark(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("set processed key: %w", err)
	}
	return nil
}
