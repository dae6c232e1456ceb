package models

type EmailMessage struct {
	To          string   `json:"to"`
	CC          []string `json:"cc,omitempty"`
	BCC         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Content     string   `json:"content"`
	HTMLContent string   `json:"html_content,omitempty"`
}

// OrderEvent is published to the message broker whenever an order is created
// or changes status.
type OrderEvent struct {
	EventType     string  `json:"event_type"`
	OrderID       string  `json:"order_id"`
	OrderNumber   string  `json:"order_number"`
	UserID        string  `json:"user_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	TotalAmount   float64 `json:"total_amount"`
	OccurredAt    string  `json:"occurred_at"`
}

const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)
