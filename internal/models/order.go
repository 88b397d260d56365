package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order is one checkout transaction. Status only ever moves
// pending -> paid or pending -> cancelled; paid and cancelled are terminal.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string    `bun:"id,pk" json:"id"`
	CustomerName     string    `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail    string    `bun:"customer_email,notnull" json:"customer_email"`
	EventID          string    `bun:"event_id,notnull" json:"event_id"`
	TotalAmount      int64     `bun:"total_amount,notnull" json:"total_amount"`
	Status           string    `bun:"status,notnull" json:"status"`
	PaymentID        string    `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	PaymentRequestID string    `bun:"payment_request_id,notnull" json:"payment_request_id"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrderItem is one line item. The check-in token covers the whole line
// quantity; UsedAt is written at most once.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID              string     `bun:"id,pk" json:"id"`
	OrderID         string     `bun:"order_id,notnull" json:"order_id"`
	TicketID        string     `bun:"ticket_id,notnull" json:"ticket_id"`
	Quantity        int        `bun:"quantity,notnull" json:"quantity"`
	PriceAtPurchase int64      `bun:"price_at_purchase,notnull" json:"price_at_purchase"`
	CheckInToken    string     `bun:"check_in_token,notnull,unique" json:"check_in_token"`
	UsedAt          *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"order_items"`
}

type CheckoutRequest struct {
	CustomerName  string         `json:"customer_name" validate:"required,max=100"`
	CustomerEmail string         `json:"customer_email" validate:"required,email"`
	EventID       string         `json:"event_id" validate:"required"`
	TotalAmount   int64          `json:"total_amount" validate:"required,gt=0"`
	Items         []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

type CheckoutItem struct {
	TicketID string `json:"ticket_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type CheckoutResponse struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	GatewayURL string `json:"gateway_url,omitempty"`
}
