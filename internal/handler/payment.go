package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/go-checkout-api/internal/dto"
	"github.com/flicky/go-checkout-api/internal/middleware"
	"github.com/flicky/go-checkout-api/internal/service"
)

type PaymentService interface {
	CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*service.PaymentIntentResult, error)
	Confirm(ctx context.Context, userID, paymentID uuid.UUID) (*service.ConfirmResult, error)
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.payments.CreateIntent(c.Request.Context(), middleware.GetUserID(c), req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}

	p := res.Payment
	c.JSON(http.StatusOK, dto.PaymentResponse{
		ID:               p.ID,
		Order:            p.OrderID,
		ProviderIntentID: p.ProviderIntentID,
		Amount:           p.Amount,
		Status:           p.Status,
		CreatedAt:        p.CreatedAt,
		ClientSecret:     res.ClientSecret,
	})
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid payment ID")
		return
	}

	res, err := h.payments.Confirm(c.Request.Context(), middleware.GetUserID(c), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("Payment not completed. Status: %s", res.ProviderStatus),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmPaymentResponse{
		Success:     true,
		Message:     "Payment confirmed",
		OrderStatus: res.Order.Status,
	})
}
