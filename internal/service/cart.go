package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/codegen"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

type AddItemInput struct {
	ProductCode string
	Quantity    int
	Size        string
	Color       string
}

type AddItemResult struct {
	Item    model.CartItem
	Product *model.Product
	// TotalInCart is the number of distinct lines in the cart, not units.
	TotalInCart int
}

type CartService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	codeGen      codegen.Generator
	codeAttempts int
	log          *zap.Logger
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, codeAttempts int, log *zap.Logger) *CartService {
	return &CartService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		codeAttempts: codeAttempts,
		log:          log,
	}
}

// AddItem merges quantity into the (product, size, color) line of the user's
// cart, creating the cart on first use. Stock is checked here only as a fast
// rejection; checkout re-validates under row locks.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (*AddItemResult, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.GetByCode(ctx, in.ProductCode)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.IsAvailable {
		return nil, errProductUnavailable(product.Name)
	}
	if product.StockQuantity < in.Quantity {
		return nil, errInsufficientStock(product.Name, product.StockQuantity)
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := model.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  in.Quantity,
		Size:      in.Size,
		Color:     in.Color,
	}
	if err := s.cartRepo.UpsertItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	item.Product = product

	total, err := s.cartRepo.CountItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("count cart items: %w", err)
	}

	s.log.Debug("cart item added",
		zap.String("cart_number", cart.CartNumber),
		zap.String("product_code", product.UniqueCode),
		zap.Int("quantity", item.Quantity),
	)
	return &AddItemResult{Item: item, Product: product, TotalInCart: total}, nil
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.cartRepo.ListItems(ctx, cart.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	cart.Items = items
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return ErrCartItemMissing
	}
	ok, err := s.cartRepo.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if !ok {
		return ErrCartItemMissing
	}
	return nil
}

// Clear removes every item but keeps the cart row and its number.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return ErrCartNotFound
	}
	return s.cartRepo.Clear(ctx, cart.ID)
}

func (s *CartService) getOrCreateCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart != nil {
		return cart, nil
	}

	err = codegen.Retry(s.codeGen, s.codeAttempts, func(number string) error {
		var err error
		cart, err = s.cartRepo.GetOrCreate(ctx, userID, number)
		return err
	})
	if errors.Is(err, codegen.ErrExhausted) {
		return nil, ErrCodeExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}
