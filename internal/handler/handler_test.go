package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

var testUserID = uuid.MustParse("7f1c2a8e-3b1d-4e57-9c1a-2b3c4d5e6f70")

// withUser stands in for AuthMiddleware.
func withUser(c *gin.Context) {
	c.Set("userID", testUserID)
	c.Next()
}

type fakeCarts struct {
	addRes   *service.AddItemResult
	addErr   error
	gotInput service.AddItemInput
	cart     *model.Cart
	err      error
}

func (f *fakeCarts) AddItem(_ context.Context, _ uuid.UUID, in service.AddItemInput) (*service.AddItemResult, error) {
	f.gotInput = in
	return f.addRes, f.addErr
}
func (f *fakeCarts) GetCart(context.Context, uuid.UUID) (*model.Cart, error)  { return f.cart, f.err }
func (f *fakeCarts) RemoveItem(context.Context, uuid.UUID, uuid.UUID) error { return f.err }
func (f *fakeCarts) Clear(context.Context, uuid.UUID) error                 { return f.err }

type fakeCheckout struct {
	order  *model.Order
	err    error
	userID uuid.UUID
}

func (f *fakeCheckout) Checkout(_ context.Context, userID uuid.UUID, _ service.CheckoutInput) (*model.Order, error) {
	f.userID = userID
	return f.order, f.err
}

type fakePayments struct {
	intent  *service.PaymentIntentResult
	confirm *service.ConfirmResult
	err     error
}

func (f *fakePayments) CreateIntent(context.Context, uuid.UUID, uuid.UUID) (*service.PaymentIntentResult, error) {
	return f.intent, f.err
}
func (f *fakePayments) Confirm(context.Context, uuid.UUID, uuid.UUID) (*service.ConfirmResult, error) {
	return f.confirm, f.err
}

func newRouter(carts *fakeCarts, checkout *fakeCheckout, payments *fakePayments) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1", withUser)
	ch := NewCartHandler(carts, checkout)
	api.POST("/cart/add-to-cart", ch.AddToCart)
	api.POST("/cart/checkout", ch.Checkout)
	api.GET("/cart", ch.GetCart)
	api.DELETE("/cart/items/:id", ch.RemoveItem)
	ph := NewPaymentHandler(payments)
	api.POST("/payment", ph.CreatePayment)
	api.POST("/payment/:id/confirm", ph.ConfirmPayment)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestAddToCart(t *testing.T) {
	itemID := uuid.New()
	carts := &fakeCarts{addRes: &service.AddItemResult{
		Item:        model.CartItem{ID: itemID, Quantity: 5, Size: "M", Color: "Red"},
		Product:     &model.Product{Name: "Linen Shirt", UniqueCode: "Ab3dE9"},
		TotalInCart: 1,
	}}
	r := newRouter(carts, &fakeCheckout{}, &fakePayments{})

	w, body := do(t, r, http.MethodPost, "/api/v1/cart/add-to-cart",
		map[string]any{"product_code": "Ab3dE9", "quantity": 3, "size": "M", "color": "Red"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, itemID.String(), body["cart_item_id"])
	assert.Equal(t, "Linen Shirt", body["product"])
	assert.Equal(t, "Ab3dE9", body["product_code"])
	assert.Equal(t, float64(5), body["quantity"])
	assert.Equal(t, float64(1), body["total_in_cart"])
	assert.Equal(t, service.AddItemInput{ProductCode: "Ab3dE9", Quantity: 3, Size: "M", Color: "Red"}, carts.gotInput)
}

func TestAddToCart_BadBody(t *testing.T) {
	r := newRouter(&fakeCarts{}, &fakeCheckout{}, &fakePayments{})

	w, body := do(t, r, http.MethodPost, "/api/v1/cart/add-to-cart",
		map[string]any{"product_code": "Ab3dE9", "quantity": 0, "size": "M", "color": "Red"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", service.ErrProductNotFound, http.StatusNotFound, "Product not found"},
		{"validation", service.ErrEmptyCart, http.StatusBadRequest, "Cart is empty"},
		{"conflict", service.ErrCodeExhausted, http.StatusConflict, service.ErrCodeExhausted.Message},
		{"gateway", &service.Error{Kind: service.ErrExternalService, Message: "Payment provider is unavailable"}, http.StatusBadGateway, "Payment provider is unavailable"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&fakeCarts{}, &fakeCheckout{err: tt.err}, &fakePayments{})
			w, body := do(t, r, http.MethodPost, "/api/v1/cart/checkout",
				map[string]any{"shipping_address": "1 Road", "payment_method": "visa"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestCheckout(t *testing.T) {
	orderID := uuid.New()
	checkout := &fakeCheckout{order: &model.Order{
		ID: orderID, OrderNumber: "Xy12Zq", TotalAmount: decimal.RequireFromString("50.00"),
	}}
	r := newRouter(&fakeCarts{}, checkout, &fakePayments{})

	w, body := do(t, r, http.MethodPost, "/api/v1/cart/checkout",
		map[string]any{"shipping_address": "1 Road", "payment_method": "visa"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Xy12Zq", body["order_number"])
	assert.Equal(t, "50", body["total_amount"])
	assert.Equal(t, orderID.String(), body["order_id"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, testUserID, checkout.userID)
}

func TestGetCart(t *testing.T) {
	carts := &fakeCarts{cart: &model.Cart{ID: uuid.New(), CartNumber: "Cart01", Items: []model.CartItem{
		{ID: uuid.New(), Quantity: 2, Size: "M", Color: "Red", Product: &model.Product{Name: "Shirt", UniqueCode: "shirt1", Price: decimal.RequireFromString("25.00")}},
		{ID: uuid.New(), Quantity: 1, Size: "L", Color: "Blue", Product: &model.Product{Name: "Cap", UniqueCode: "cap001", Price: decimal.RequireFromString("9.99")}},
	}}}
	r := newRouter(carts, &fakeCheckout{}, &fakePayments{})

	w, body := do(t, r, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cart01", body["cart_number"])
	assert.Equal(t, "59.99", body["total"])
	assert.Len(t, body["items"], 2)
}

func TestRemoveItem(t *testing.T) {
	r := newRouter(&fakeCarts{}, &fakeCheckout{}, &fakePayments{})
	w, _ := do(t, r, http.MethodDelete, "/api/v1/cart/items/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/cart/items/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	r = newRouter(&fakeCarts{err: service.ErrCartItemMissing}, &fakeCheckout{}, &fakePayments{})
	w, _ = do(t, r, http.MethodDelete, "/api/v1/cart/items/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePayment(t *testing.T) {
	paymentID, orderID := uuid.New(), uuid.New()
	payments := &fakePayments{intent: &service.PaymentIntentResult{
		Payment: &model.Payment{
			ID: paymentID, OrderID: orderID, ProviderIntentID: "pi_123",
			Amount: decimal.RequireFromString("75.00"), Status: model.PaymentRecordPending,
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		ClientSecret: "pi_123_secret",
	}}
	r := newRouter(&fakeCarts{}, &fakeCheckout{}, payments)

	w, body := do(t, r, http.MethodPost, "/api/v1/payment", map[string]any{"order_id": orderID.String()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, paymentID.String(), body["id"])
	assert.Equal(t, orderID.String(), body["order"])
	assert.Equal(t, "pi_123", body["provider_intent_id"])
	assert.Equal(t, "75", body["amount"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "pi_123_secret", body["client_secret"])
	assert.NotEmpty(t, body["created_at"])
}

func TestConfirmPayment(t *testing.T) {
	payments := &fakePayments{confirm: &service.ConfirmResult{
		Success: true, ProviderStatus: "succeeded", Order: &model.Order{Status: model.OrderStatusProcessing},
	}}
	r := newRouter(&fakeCarts{}, &fakeCheckout{}, payments)

	w, body := do(t, r, http.MethodPost, "/api/v1/payment/"+uuid.NewString()+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "processing", body["order_status"])
}

func TestConfirmPayment_NotSucceeded(t *testing.T) {
	payments := &fakePayments{confirm: &service.ConfirmResult{Success: false, ProviderStatus: "requires_payment_method"}}
	r := newRouter(&fakeCarts{}, &fakeCheckout{}, payments)

	w, body := do(t, r, http.MethodPost, "/api/v1/payment/"+uuid.NewString()+"/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment not completed. Status: requires_payment_method", body["error"])
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("refused") },
	})
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	w, _ := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "connected", body["postgres"])
	assert.Equal(t, "unavailable", body["redis"])
}
