package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/dto"
	"github.com/flicky/go-checkout-api/internal/middleware"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/service"
)

type CartService interface {
	AddItem(ctx context.Context, userID uuid.UUID, in service.AddItemInput) (*service.AddItemResult, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID, in service.CheckoutInput) (*model.Order, error)
}

type CartHandler struct {
	carts    CartService
	checkout CheckoutService
}

func NewCartHandler(carts CartService, checkout CheckoutService) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout}
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.carts.AddItem(c.Request.Context(), middleware.GetUserID(c), service.AddItemInput{
		ProductCode: req.ProductCode,
		Quantity:    req.Quantity,
		Size:        req.Size,
		Color:       req.Color,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AddToCartResponse{
		Success:     true,
		CartItemID:  res.Item.ID,
		Product:     res.Product.Name,
		ProductCode: res.Product.UniqueCode,
		Quantity:    res.Item.Quantity,
		Size:        res.Item.Size,
		Color:       res.Item.Color,
		TotalInCart: res.TotalInCart,
	})
}

func (h *CartHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.checkout.Checkout(c.Request.Context(), middleware.GetUserID(c), service.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{
		Success:     true,
		Message:     "Order placed successfully",
		OrderNumber: order.OrderNumber,
		TotalAmount: order.TotalAmount,
		OrderID:     order.ID,
	})
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	total := decimal.Zero
	items := make([]dto.CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		subtotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		items = append(items, dto.CartItemResponse{
			ID:          item.ID,
			ProductCode: item.Product.UniqueCode,
			Name:        item.Product.Name,
			Price:       item.Product.Price,
			Quantity:    item.Quantity,
			Size:        item.Size,
			Color:       item.Color,
			Subtotal:    subtotal,
		})
	}
	c.JSON(http.StatusOK, dto.CartResponse{ID: cart.ID, CartNumber: cart.CartNumber, Items: items, Total: total})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	if err := h.carts.RemoveItem(c.Request.Context(), middleware.GetUserID(c), itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
