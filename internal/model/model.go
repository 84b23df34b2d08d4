package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
}

type Size string

const (
	SizeSmall      Size = "small"
	SizeMedium     Size = "medium"
	SizeLarge      Size = "large"
	SizeExtraLarge Size = "extra-large"
)

func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
		return true
	}
	return false
}

type Product struct {
	ID            uuid.UUID
	CategoryID    *uuid.UUID
	Name          string
	Description   string
	Price         decimal.Decimal
	Size          Size
	Color         string
	StockQuantity int
	IsAvailable   bool
	UniqueCode    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Cart struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CartNumber string
	Items      []CartItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem is unique per (cart, product, size, color).
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Size      string
	Color     string
	Product   *Product
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodVisa       PaymentMethod = "visa"
	PaymentMethodMastercard PaymentMethod = "mastercard"
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodEsewa      PaymentMethod = "esewa"
	PaymentMethodConnectIPS PaymentMethod = "connectips"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodVisa, PaymentMethodMastercard, PaymentMethodCOD, PaymentMethodEsewa, PaymentMethodConnectIPS:
		return true
	}
	return false
}

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	OrderNumber     string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	ShippingAddress string
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem.PriceAtPurchase is frozen when the order is created.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	Quantity        int
	PriceAtPurchase decimal.Decimal
	Size            string
	Color           string
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
)

type Payment struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	ProviderIntentID string
	Amount           decimal.Decimal
	Status           PaymentRecordStatus
	CreatedAt        time.Time
}

// OrderMessage is published to the order queue once checkout commits.
type OrderMessage struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	OrderNumber string    `json:"order_number"`
}
