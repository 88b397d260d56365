package models

import "time"

// PaymentStatus is the closed, normalized vocabulary the rest of the
// system branches on. Raw gateway strings never leave the adapter.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "Succeeded"
	PaymentCanceled  PaymentStatus = "Canceled"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentPending   PaymentStatus = "Pending"
	PaymentUnknown   PaymentStatus = "Unknown"
)

// PaymentState is a point-in-time answer from the gateway for one payment.
type PaymentState struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	RawStatus string        `json:"raw_status"`
	Total     int64         `json:"total"`
}

// PaymentEvent is the kafka payload published when reconciliation applies
// a status transition to an order.
type PaymentEvent struct {
	OrderID   string        `json:"order_id"`
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// InventoryFault is published when a paid order could not decrement a tier.
// It is an operator signal, never a customer-facing failure.
type InventoryFault struct {
	OrderID   string    `json:"order_id"`
	TicketID  string    `json:"ticket_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
