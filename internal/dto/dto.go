package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

// --- Catalog ---

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

type CreateProductRequest struct {
	CategoryID    *uuid.UUID      `json:"category_id"`
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" binding:"required"`
	Size          string          `json:"size" binding:"required,oneof=small medium large extra-large"`
	Color         string          `json:"color"`
	StockQuantity int             `json:"stock_quantity" binding:"min=0"`
	IsAvailable   *bool           `json:"is_available"`
}

type UpdateProductRequest struct {
	CategoryID    *uuid.UUID       `json:"category_id"`
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Size          *string          `json:"size" binding:"omitempty,oneof=small medium large extra-large"`
	Color         *string          `json:"color"`
	StockQuantity *int             `json:"stock_quantity" binding:"omitempty,min=0"`
	IsAvailable   *bool            `json:"is_available"`
}

type ProductResponse struct {
	ID            uuid.UUID       `json:"id"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Size          model.Size      `json:"size"`
	Color         string          `json:"color"`
	StockQuantity int             `json:"stock_quantity"`
	IsAvailable   bool            `json:"is_available"`
	UniqueCode    string          `json:"unique_code"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// --- Cart ---

type AddToCartRequest struct {
	ProductCode string `json:"product_code" binding:"required,len=6"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	Size        string `json:"size" binding:"required,max=20"`
	Color       string `json:"color" binding:"required,max=50"`
}

type AddToCartResponse struct {
	Success     bool      `json:"success"`
	CartItemID  uuid.UUID `json:"cart_item_id"`
	Product     string    `json:"product"`
	ProductCode string    `json:"product_code"`
	Quantity    int       `json:"quantity"`
	Size        string    `json:"size"`
	Color       string    `json:"color"`
	TotalInCart int       `json:"total_in_cart"`
}

type CartResponse struct {
	ID         uuid.UUID          `json:"id"`
	CartNumber string             `json:"cart_number"`
	Items      []CartItemResponse `json:"items"`
	Total      decimal.Decimal    `json:"total"`
}

type CartItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductCode string          `json:"product_code"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// --- Checkout / Order ---

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
}

type CheckoutResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderID     uuid.UUID       `json:"order_id"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          model.OrderStatus   `json:"status"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentStatus   model.PaymentStatus `json:"payment_status"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	Items           []OrderItemResponse `json:"items,omitempty"`
	OrderDate       time.Time           `json:"order_date"`
}

type OrderItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Product         string          `json:"product"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Size            string          `json:"size"`
	Color           string          `json:"color"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Payment ---

type CreatePaymentRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
}

type PaymentResponse struct {
	ID               uuid.UUID                 `json:"id"`
	Order            uuid.UUID                 `json:"order"`
	ProviderIntentID string                    `json:"provider_intent_id"`
	Amount           decimal.Decimal           `json:"amount"`
	Status           model.PaymentRecordStatus `json:"status"`
	CreatedAt        time.Time                 `json:"created_at"`
	ClientSecret     string                    `json:"client_secret"`
}

type ConfirmPaymentResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	OrderStatus model.OrderStatus `json:"order_status"`
}
