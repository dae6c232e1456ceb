package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/freshgrove/fulfillment/internal/api/handlers"
	"github.com/freshgrove/fulfillment/internal/api/middleware"
	appErrors "github.com/freshgrove/fulfillment/internal/errors"
	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/freshgrove/fulfillment/internal/utils/response"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrderService struct {
	checkout            func(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error)
	cancel              func(ctx context.Context, orderID, requesterID uuid.UUID, userEmail string) (*models.Order, error)
	getOrderByID        func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	listOrdersByUser    func(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error)
	updateOrderStatus   func(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
	updatePaymentStatus func(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error)
}

func (s *stubOrderService) Checkout(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error) {
	return s.checkout(ctx, userID, userEmail, req)
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID, requesterID uuid.UUID, userEmail string) (*models.Order, error) {
	return s.cancel(ctx, orderID, requesterID, userEmail)
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.getOrderByID(ctx, id)
}

func (s *stubOrderService) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {
	return s.listOrdersByUser(ctx, userID, page, size)
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	return s.updateOrderStatus(ctx, id, status)
}

func (s *stubOrderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error) {
	return s.updatePaymentStatus(ctx, id, status)
}

func withClaims(r *http.Request, claims *models.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	return r.WithContext(ctx)
}

func customerClaims() *models.Claims {
	return &models.Claims{UserID: uuid.New(), Email: "shopper@example.com", Role: "customer"}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()

	var resp response.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return resp
}

func checkoutBody(t *testing.T) *bytes.Buffer {
	t.Helper()

	body, err := json.Marshal(models.CheckoutRequest{
		ShippingAddress: models.Address{
			Street: "12 Orchard Lane", City: "Portland", State: "OR", PostalCode: "97201", Country: "USA",
		},
	})
	require.NoError(t, err)

	return bytes.NewBuffer(body)
}

func TestCheckoutHandler(t *testing.T) {

	t.Run("Success - returns 201 with the created order", func(t *testing.T) {
		// Arrange
		claims := customerClaims()
		order := &models.Order{ID: uuid.New(), OrderNumber: "FG-20260901-ABCDEF1234", UserID: claims.UserID}

		svc := &stubOrderService{
			checkout: func(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error) {
				assert.Equal(t, claims.UserID, userID)
				assert.Equal(t, claims.Email, userEmail)
				return order, nil
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", checkoutBody(t))
		req = withClaims(req, claims)
		rec := httptest.NewRecorder()

		// Act
		handler.Checkout().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Data)
	})

	t.Run("Failure - missing claims returns 401", func(t *testing.T) {
		// Arrange
		handler := handlers.NewOrderHandler(&stubOrderService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", checkoutBody(t))
		rec := httptest.NewRecorder()

		// Act
		handler.Checkout().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Failure - insufficient stock returns 409 naming the products", func(t *testing.T) {
		// Arrange
		svc := &stubOrderService{
			checkout: func(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error) {
				return nil, appErrors.InsufficientStockError([]string{"Smoked Ham", "Free-Range Eggs"})
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", checkoutBody(t))
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.Checkout().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusConflict, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, appErrors.ErrCodeInsufficientStock, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Contains(t, resp.Error.Details[0], "Smoked Ham")
		assert.Contains(t, resp.Error.Details[0], "Free-Range Eggs")
	})

	t.Run("Failure - empty cart returns 400", func(t *testing.T) {
		// Arrange
		svc := &stubOrderService{
			checkout: func(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error) {
				return nil, appErrors.EmptyCartError()
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", checkoutBody(t))
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.Checkout().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, appErrors.ErrCodeEmptyCart, resp.Error.Code)
	})
}

func TestCancelOrderHandler(t *testing.T) {

	t.Run("Success - returns the cancelled order", func(t *testing.T) {
		// Arrange
		claims := customerClaims()
		orderID := uuid.New()

		svc := &stubOrderService{
			cancel: func(ctx context.Context, id, requesterID uuid.UUID, userEmail string) (*models.Order, error) {
				assert.Equal(t, orderID, id)
				assert.Equal(t, claims.UserID, requesterID)
				return &models.Order{ID: id, Status: models.OrderStatusCancelled}, nil
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, claims)
		rec := httptest.NewRecorder()

		// Act
		handler.CancelOrder().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Failure - closed window maps to 409", func(t *testing.T) {
		// Arrange
		orderID := uuid.New()

		svc := &stubOrderService{
			cancel: func(ctx context.Context, id, requesterID uuid.UUID, userEmail string) (*models.Order, error) {
				return nil, appErrors.NotCancellableError("The cancellation window has closed")
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.CancelOrder().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusConflict, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, appErrors.ErrCodeNotCancellable, resp.Error.Code)
	})

	t.Run("Failure - malformed id returns 400", func(t *testing.T) {
		// Arrange
		handler := handlers.NewOrderHandler(&stubOrderService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/not-a-uuid/cancel", nil)
		req.SetPathValue("id", "not-a-uuid")
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.CancelOrder().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetOrderHandler(t *testing.T) {

	t.Run("Failure - another customer's order is forbidden", func(t *testing.T) {
		// Arrange
		orderID := uuid.New()

		svc := &stubOrderService{
			getOrderByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
				return &models.Order{ID: id, UserID: uuid.New()}, nil
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.GetOrder().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Success - an admin can read any order", func(t *testing.T) {
		// Arrange
		orderID := uuid.New()

		svc := &stubOrderService{
			getOrderByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
				return &models.Order{ID: id, UserID: uuid.New()}, nil
			},
		}
		handler := handlers.NewOrderHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, &models.Claims{UserID: uuid.New(), Role: "admin"})
		rec := httptest.NewRecorder()

		// Act
		handler.GetOrder().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUpdateOrderStatusHandler(t *testing.T) {

	t.Run("Failure - non-admin callers are forbidden", func(t *testing.T) {
		// Arrange
		handler := handlers.NewOrderHandler(&stubOrderService{})

		body, err := json.Marshal(models.UpdateOrderStatusRequest{Status: models.OrderStatusProcessing})
		require.NoError(t, err)

		orderID := uuid.New()

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", bytes.NewBuffer(body))
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, customerClaims())
		rec := httptest.NewRecorder()

		// Act
		handler.UpdateOrderStatus().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Success - admin transition passes through", func(t *testing.T) {
		// Arrange
		orderID := uuid.New()

		svc := &stubOrderService{
			updateOrderStatus: func(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
				assert.Equal(t, models.OrderStatusProcessing, status)
				return &models.Order{ID: id, Status: status}, nil
			},
		}
		handler := handlers.NewOrderHandler(svc)

		body, err := json.Marshal(models.UpdateOrderStatusRequest{Status: models.OrderStatusProcessing})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", bytes.NewBuffer(body))
		req.SetPathValue("id", orderID.String())
		req = withClaims(req, &models.Claims{UserID: uuid.New(), Role: "admin"})
		rec := httptest.NewRecorder()

		// Act
		handler.UpdateOrderStatus().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
