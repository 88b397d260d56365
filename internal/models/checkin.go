package models

import "time"

// TicketDetails is the read-only view served for a check-in token: the
// line item joined with its order, tier and event.
type TicketDetails struct {
	Token           string     `json:"token"`
	TicketName      string     `json:"ticket_name"`
	Quantity        int        `json:"quantity"`
	PriceAtPurchase int64      `json:"price_at_purchase"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	CustomerName    string     `json:"customer_name"`
	CustomerEmail   string     `json:"customer_email"`
	OrderStatus     string     `json:"order_status"`
	EventTitle      string     `json:"event_title"`
	EventDate       time.Time  `json:"event_date"`
	Location        string     `json:"location"`
}
