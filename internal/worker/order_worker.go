package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

const IdempotencyTTL = 24 * time.Hour

func processedKey(msg model.OrderMessage) string {
	return "order_confirmed:" + msg.OrderID.String()
}

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// OrderWorker consumes order.created events and sends the customer a
// confirmation. Redeliveries of a handled order are acked without resending.
type OrderWorker struct {
	channel   consumer
	orderRepo repository.OrderRepository
	processed ProcessedStore
	notifier  Notifier
	log       *zap.Logger
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewOrderWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	processed ProcessedStore,
	notifier Notifier,
	log *zap.Logger,
) *OrderWorker {
	return &OrderWorker{
		channel:   ch,
		orderRepo: orderRepo,
		processed: processed,
		notifier:  notifier,
		log:       log,
		done:      make(chan struct{}),
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", zap.String("queue", orderQueueName))
	return nil
}

// Stop ends consumption and returns once the in-flight message, if any, is
// handled. It is safe to call more than once.
func (w *OrderWorker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil {
		w.log.Error("unmarshal order message", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With(
		zap.String("order_id", orderMsg.OrderID.String()),
		zap.String("order_number", orderMsg.OrderNumber),
	)

	key := processedKey(orderMsg)
	seen, err := w.processed.Seen(ctx, key)
	if err != nil {
		log.Error("check idempotency key", zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}
	if seen {
		log.Info("order already confirmed, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.confirm(ctx, orderMsg); err != nil {
		log.Error("order confirmation failed", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	if err := w.processed.Mark(ctx, key); err != nil {
		log.Error("set idempotency key", zap.Error(err))
	}

	_ = msg.Ack(false)
	log.Info("order confirmed")
}

func (w *OrderWorker) confirm(ctx context.Context, msg model.OrderMessage) error {
	order, err := w.orderRepo.GetForUser(ctx, msg.OrderID, msg.UserID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}
	if err := w.notifier.OrderConfirmed(ctx, order); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
