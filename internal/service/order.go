package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/codegen"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

// EventPublisher announces committed orders to asynchronous consumers.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, msg model.OrderMessage) error
}

type CheckoutInput struct {
	ShippingAddress string
	PaymentMethod   string
}

type OrderService struct {
	tx           repository.TxManager
	orderRepo    repository.OrderRepository
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	publisher    EventPublisher
	cache        ProductCache
	codeGen      codegen.Generator
	codeAttempts int
	log          *zap.Logger
}

func NewOrderService(
	tx repository.TxManager,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	publisher EventPublisher,
	cache ProductCache,
	codeAttempts int,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		tx:           tx,
		orderRepo:    orderRepo,
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		publisher:    publisher,
		cache:        cache,
		codeAttempts: codeAttempts,
		log:          log,
	}
}

// Checkout turns the user's cart into an order in a single transaction: the
// order and its items are written, stock is decremented and the cart is
// emptied, or nothing changes at all. The cart row and then the product rows
// (in id order) are locked for the duration, so a repeated checkout of the
// same cart finds it empty and two checkouts competing for the last unit
// serialize with the loser seeing the reduced stock.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*model.Order, error) {
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	method := model.PaymentMethod(in.PaymentMethod)
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	var (
		order *model.Order
		codes []string
	)
	// A duplicate order number aborts the Postgres transaction, so each
	// attempt runs in a fresh one.
	err := codegen.Retry(s.codeGen, s.codeAttempts, func(number string) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			order, codes, err = s.checkout(ctx, userID, address, method, number)
			return err
		})
	})
	if errors.Is(err, codegen.ErrExhausted) {
		s.log.Error("order number space exhausted", zap.String("user_id", userID.String()))
		return nil, ErrCodeExhausted
	}
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.log.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	if s.cache != nil {
		s.cache.Invalidate(ctx, codes...)
	}
	if s.publisher != nil {
		msg := model.OrderMessage{OrderID: order.ID, UserID: userID, OrderNumber: order.OrderNumber}
		if err := s.publisher.PublishOrderCreated(ctx, msg); err != nil {
			s.log.Warn("publish order.created failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}
	return order, nil
}

func (s *OrderService) checkout(ctx context.Context, userID uuid.UUID, address string, method model.PaymentMethod, number string) (*model.Order, []string, error) {
	// The cart lock serializes checkouts of one cart; items are read after it.
	cart, err := s.cartRepo.LockByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil {
		return nil, nil, ErrCartNotFound
	}

	items, err := s.cartRepo.ListItems(ctx, cart.ID, true)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, ErrEmptyCart
	}

	// Several lines may reference the same product in different variants,
	// so stock is checked against the summed quantity.
	requested := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		p := it.Product
		if !p.IsAvailable {
			return nil, nil, errProductUnavailable(p.Name)
		}
		requested[p.ID] += it.Quantity
		if p.StockQuantity < requested[p.ID] {
			return nil, nil, errInsufficientStock(p.Name, p.StockQuantity)
		}
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	order := &model.Order{
		UserID:          userID,
		OrderNumber:     number,
		Status:          model.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: address,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   method,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, nil, err
	}

	orderItems := make([]model.OrderItem, 0, len(items))
	codes := make([]string, 0, len(requested))
	seen := make(map[uuid.UUID]bool, len(requested))
	for _, it := range items {
		orderItems = append(orderItems, model.OrderItem{
			OrderID:         order.ID,
			ProductID:       it.ProductID,
			ProductName:     it.Product.Name,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.Product.Price,
			Size:            it.Size,
			Color:           it.Color,
		})
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			codes = append(codes, it.Product.UniqueCode)
		}
	}
	if err := s.orderRepo.CreateItems(ctx, orderItems); err != nil {
		return nil, nil, err
	}

	for _, it := range items {
		ok, err := s.productRepo.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, errStockExhausted(it.Product.Name)
		}
	}

	if err := s.cartRepo.Clear(ctx, cart.ID); err != nil {
		return nil, nil, err
	}

	order.Items = orderItems
	return order, codes, nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
