package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	appErrors "github.com/freshgrove/fulfillment/internal/errors"
	"github.com/freshgrove/fulfillment/internal/inventory"
	"github.com/freshgrove/fulfillment/internal/metrics"
	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/freshgrove/fulfillment/internal/pricing"
	repository "github.com/freshgrove/fulfillment/internal/repositories"
	"github.com/google/uuid"
)

type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error)
	Cancel(ctx context.Context, orderID, requesterID uuid.UUID, userEmail string) (*models.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error)
}

type orderService struct {
	db       *sql.DB
	orders   repository.OrderRepository
	carts    repository.CartRepository
	ledger   *inventory.Ledger
	notifier NotificationService
	window   time.Duration
	now      func() time.Time
}

func NewOrderService(db *sql.DB, orders repository.OrderRepository, carts repository.CartRepository,
	ledger *inventory.Ledger, notifier NotificationService, cancellationWindow time.Duration) OrderService {
	return &orderService{
		db:       db,
		orders:   orders,
		carts:    carts,
		ledger:   ledger,
		notifier: notifier,
		window:   cancellationWindow,
		now:      time.Now,
	}
}

// generateOrderNumber produces a human-readable, collision-resistant order
// number. The unique index on orders.order_number is the hard guarantee.
func generateOrderNumber(now time.Time) string {
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	return fmt.Sprintf("FG-%s-%s", now.Format("20060102"), entropy[:10])
}

func validShipping(addr *models.Address) bool {
	return addr.Street != "" && addr.City != "" && addr.State != "" && addr.PostalCode != "" && addr.Country != ""
}

// Checkout converts the caller's cart into a persisted order inside one
// transaction. Inventory is only touched once the cart and shipping details
// have passed validation; any failure after BeginTx rolls everything back and
// leaves the cart untouched so the caller can retry.
func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, userEmail string, req *models.CheckoutRequest) (*models.Order, error) {

	if !validShipping(&req.ShippingAddress) {
		return nil, appErrors.ValidationError("Shipping address is incomplete")
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	if cart.IsEmpty() {
		metrics.RecordCheckout("empty_cart")
		return nil, appErrors.EmptyCartError()
	}

	demands := make([]inventory.Demand, 0, len(cart.Entries))
	for _, entry := range cart.Entries {
		demands = append(demands, inventory.Demand{ProductID: entry.ProductID, Quantity: entry.Quantity})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to open transaction").WithError(err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.ledger.Reserve(ctx, tx, demands)
	if err != nil {

		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) {
			metrics.RecordCheckout("insufficient_stock")
			return nil, appErrors.InsufficientStockError(stockErr.Products).WithError(err)
		}

		if errors.Is(err, sql.ErrNoRows) {
			metrics.RecordCheckout("error")
			return nil, appErrors.NotFoundError("Product no longer exists").WithError(err)
		}

		metrics.RecordCheckout("error")
		return nil, appErrors.DatabaseError("Failed to reserve stock").WithError(err)
	}

	now := s.now()

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(now),
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: &req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, entry := range cart.Entries {

		// Unit prices come from the row snapshots taken under lock in this
		// same transaction, never from a separate read.
		product := locked[entry.ProductID]
		subtotal := pricing.Subtotal(product.UnitKind, product.UnitPrice, entry.Quantity)

		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    entry.Quantity,
			UnitPrice:   product.UnitPrice,
			Subtotal:    subtotal,
			CreatedAt:   now,
		})

		order.TotalAmount += subtotal
	}

	sort.Slice(order.Items, func(i, j int) bool {
		return order.Items[i].ProductName < order.Items[j].ProductName
	})

	if err := s.orders.CreateOrderTx(ctx, tx, order); err != nil {

		metrics.RecordCheckout("error")

		if errors.Is(err, repository.ErrDuplicateOrderNumber) {
			return nil, appErrors.DuplicateEntryError("Order number collision, please retry").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to create order").WithError(err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordCheckout("error")
		return nil, appErrors.DatabaseError("Failed to commit order").WithError(err)
	}

	committed = true
	metrics.RecordCheckout("success")

	// The cart only clears once the order is durable. A failed clear is an
	// inconvenience, not a correctness problem.
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		slog.Warn("Order committed but cart clear failed",
			slog.String("orderId", order.ID.String()),
			slog.String("error", err.Error()))
	}

	s.notifyAfterCommit(ctx, models.OrderEventCreated, order, userEmail)

	return order, nil
}

func (s *orderService) cancellable(order *models.Order, now time.Time) error {

	if order.Status != models.OrderStatusPending {
		return appErrors.NotCancellableError("Only pending orders can be cancelled")
	}

	if now.Sub(order.CreatedAt) > s.window {
		return appErrors.NotCancellableError("The cancellation window has closed")
	}

	return nil
}

// Cancel is the single self-service reversal: pending -> cancelled within the
// configured window. The guard is re-checked under the order's row lock so a
// concurrent status change cannot race past it, and the restored stock shares
// the transaction with the status flip.
func (s *orderService) Cancel(ctx context.Context, orderID, requesterID uuid.UUID, userEmail string) (*models.Order, error) {

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Order not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to load order").WithError(err)
	}

	if order.UserID != requesterID {
		return nil, appErrors.ForbiddenError("You don't have permission to cancel this order")
	}

	if err := s.cancellable(order, s.now()); err != nil {
		metrics.RecordCancellation("rejected")
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to open transaction").WithError(err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lockedOrder, err := s.orders.GetOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to lock order").WithError(err)
	}

	now := s.now()

	if err := s.cancellable(lockedOrder, now); err != nil {
		metrics.RecordCancellation("rejected")
		return nil, err
	}

	// Line items are immutable, so the pre-transaction copy is authoritative.
	demands := make([]inventory.Demand, 0, len(order.Items))
	for _, item := range order.Items {
		demands = append(demands, inventory.Demand{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if err := s.ledger.Restore(ctx, tx, demands); err != nil {
		metrics.RecordCancellation("error")
		return nil, appErrors.DatabaseError("Failed to restore stock").WithError(err)
	}

	if err := s.orders.MarkCancelledTx(ctx, tx, orderID, now); err != nil {
		metrics.RecordCancellation("error")
		return nil, appErrors.DatabaseError("Failed to cancel order").WithError(err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordCancellation("error")
		return nil, appErrors.DatabaseError("Failed to commit cancellation").WithError(err)
	}

	committed = true
	metrics.RecordCancellation("success")

	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now

	s.notifyAfterCommit(ctx, models.OrderEventStatusChanged, order, userEmail)

	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Order not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to load order").WithError(err)
	}

	return order, nil
}

func (s *orderService) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {

	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 10
	}

	orders, total, err := s.orders.ListOrdersByUser(ctx, userID, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, total, nil
}

// UpdateOrderStatus drives the administrative, forward-only part of the
// lifecycle. Cancellation goes through Cancel, which also restores stock.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {

	if status == models.OrderStatusCancelled {
		return nil, appErrors.BadRequestError("Use the cancellation endpoint to cancel an order")
	}

	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(status) {
		return nil, appErrors.BadRequestError(
			fmt.Sprintf("Cannot transition order from %s to %s", order.Status, status))
	}

	now := s.now()

	var deliveredAt *time.Time
	if status == models.OrderStatusDelivered {
		deliveredAt = &now
	}

	if err := s.orders.UpdateStatus(ctx, id, status, deliveredAt); err != nil {
		return nil, appErrors.DatabaseError("Failed to update order status").WithError(err)
	}

	order.Status = status
	order.DeliveredAt = deliveredAt
	order.UpdatedAt = now

	s.notifyAfterCommit(ctx, models.OrderEventStatusChanged, order, "")

	return order, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error) {

	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, appErrors.DatabaseError("Failed to update payment status").WithError(err)
	}

	order.PaymentStatus = status
	order.UpdatedAt = s.now()

	s.notifyAfterCommit(ctx, models.OrderEventStatusChanged, order, "")

	return order, nil
}

// notifyAfterCommit fires notifications strictly after the transaction has
// committed. Delivery is best effort and never affects the caller's result.
func (s *orderService) notifyAfterCommit(ctx context.Context, eventType string, order *models.Order, recipient string) {

	if s.notifier == nil {
		return
	}

	detached := context.WithoutCancel(ctx)

	go s.notifier.OrderEvent(detached, eventType, order, recipient)
}
