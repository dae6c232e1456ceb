package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/freshgrove/fulfillment/pkg/rabbitmq"
	"github.com/freshgrove/fulfillment/pkg/sendgrid"
)

// NotificationService is the fire-and-forget sink for order lifecycle
// changes. Failures are logged, never propagated; callers have already
// committed by the time this runs.
type NotificationService interface {
	OrderEvent(ctx context.Context, eventType string, order *models.Order, recipient string)
}

type notificationService struct {
	email  sendgrid.EmailService
	events rabbitmq.EventPublisher
}

func NewNotificationService(email sendgrid.EmailService, events rabbitmq.EventPublisher) NotificationService {
	return &notificationService{email: email, events: events}
}

func (n *notificationService) OrderEvent(ctx context.Context, eventType string, order *models.Order, recipient string) {

	logger := slog.Default().With(
		slog.String("orderId", order.ID.String()),
		slog.String("event", eventType),
	)

	if n.events != nil {

		event := &models.OrderEvent{
			EventType:     eventType,
			OrderID:       order.ID.String(),
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID.String(),
			Status:        string(order.Status),
			PaymentStatus: string(order.PaymentStatus),
			TotalAmount:   order.TotalAmount,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		}

		if err := n.events.PublishOrderEvent(ctx, eventType, event); err != nil {
			logger.Error("Failed to publish order event", slog.String("error", err.Error()))
		}
	}

	// Admin-driven transitions carry no recipient; those go to the broker only.
	if n.email == nil || recipient == "" {
		return
	}

	message := buildOrderEmail(eventType, order, recipient)

	if err := n.email.Send(ctx, message); err != nil {
		logger.Error("Failed to send order email", slog.String("error", err.Error()))
	}
}

func buildOrderEmail(eventType string, order *models.Order, recipient string) *models.EmailMessage {

	var subject, content string

	switch {
	case eventType == models.OrderEventCreated:
		subject = fmt.Sprintf("Order %s confirmed", order.OrderNumber)
		content = fmt.Sprintf("Thanks for your order! We received order %s totalling %.2f.", order.OrderNumber, order.TotalAmount)
	case order.Status == models.OrderStatusCancelled:
		subject = fmt.Sprintf("Order %s cancelled", order.OrderNumber)
		content = fmt.Sprintf("Your order %s has been cancelled and the items returned to stock.", order.OrderNumber)
	default:
		subject = fmt.Sprintf("Order %s update", order.OrderNumber)
		content = fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, order.Status)
	}

	return &models.EmailMessage{
		To:      recipient,
		Subject: subject,
		Content: content,
	}
}
