package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/gateway"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

var errGatewayUnavailable = &Error{ErrExternalService, "Payment provider is unavailable"}

type PaymentIntentResult struct {
	Payment *model.Payment
	// ClientSecret is handed to the client once and never stored or logged.
	ClientSecret string
}

type ConfirmResult struct {
	Success        bool
	ProviderStatus string
	Order          *model.Order
}

type PaymentService struct {
	tx          repository.TxManager
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	gateway     gateway.Gateway
	currency    string
	log         *zap.Logger
}

func NewPaymentService(
	tx repository.TxManager,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	gw gateway.Gateway,
	currency string,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:          tx,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gw,
		currency:    currency,
		log:         log,
	}
}

// toMinorUnits converts a two-decimal currency amount to its smallest unit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateIntent opens a provider payment intent for the order total and records
// a pending Payment. Nothing is stored when the provider call fails.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*PaymentIntentResult, error) {
	order, err := s.orderRepo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, ErrOrderAlreadyPaid
	}

	intent, err := s.gateway.CreateIntent(ctx, toMinorUnits(order.TotalAmount), s.currency, map[string]string{
		"order_id":    order.ID.String(),
		"customer_id": userID.String(),
	})
	if err != nil {
		s.log.Error("create payment intent failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, errGatewayUnavailable
	}

	payment := &model.Payment{
		OrderID:          order.ID,
		ProviderIntentID: intent.ID,
		Amount:           order.TotalAmount,
		Status:           model.PaymentRecordPending,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.log.Error("payment intent created but not recorded",
			zap.String("order_id", order.ID.String()),
			zap.String("provider_intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info("payment intent created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("provider_intent_id", intent.ID),
	)
	return &PaymentIntentResult{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// Confirm asks the provider for the intent's current status and, when it has
// succeeded, marks the payment completed and the order paid together.
// Repeating it after success changes nothing.
func (s *PaymentService) Confirm(ctx context.Context, userID, paymentID uuid.UUID) (*ConfirmResult, error) {
	payment, err := s.paymentRepo.GetForUser(ctx, paymentID, userID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	intent, err := s.gateway.RetrieveIntent(ctx, payment.ProviderIntentID)
	if err != nil {
		s.log.Error("retrieve payment intent failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return nil, errGatewayUnavailable
	}
	if intent.Status != gateway.StatusSucceeded {
		return &ConfirmResult{Success: false, ProviderStatus: intent.Status}, nil
	}

	var order *model.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		completed, err := s.paymentRepo.MarkCompleted(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !completed {
			order, err = s.orderRepo.GetForUser(ctx, payment.OrderID, userID)
			if err != nil {
				return err
			}
			if order == nil {
				return ErrOrderNotFound
			}
			return nil
		}
		order, err = s.orderRepo.MarkPaid(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			// the payment row is owned through the order, so nil means cancelled
			return ErrOrderCancelled
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	s.log.Info("payment confirmed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("order_status", string(order.Status)),
	)
	return &ConfirmResult{Success: true, ProviderStatus: intent.Status, Order: order}, nil
}
