package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	EventDate   time.Time `bun:"event_date,notnull" json:"event_date"`
	Location    string    `bun:"location,notnull" json:"location"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Ticket is a purchasable ticket tier. QuantityAvailable is only ever
// reduced through the inventory ledger's conditional decrement.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                string    `bun:"id,pk" json:"id"`
	EventID           string    `bun:"event_id,notnull" json:"event_id"`
	Name              string    `bun:"name,notnull" json:"name"`
	Price             int64     `bun:"price,notnull" json:"price"`
	Quantity          int       `bun:"quantity,notnull" json:"quantity"`
	QuantityAvailable int       `bun:"quantity_available,notnull" json:"quantity_available"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type EventWithTickets struct {
	Event
	Tickets []Ticket `json:"tickets"`
}

type CreateEventRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description"`
	EventDate   time.Time           `json:"event_date" validate:"required"`
	Location    string              `json:"location" validate:"required,max=200"`
	Tickets     []CreateTierRequest `json:"tickets" validate:"required,min=1,dive"`
}

type CreateTierRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}
