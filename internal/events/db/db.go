package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func NewDB(b *bun.DB) *DB {
	return &DB{Bun: b}
}

func (d *DB) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().Model(&tickets).Where("event_id = ?", eventID).Order("price ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().Model(&ticket).Where("id = ?", ticketID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().Model(&events).Order("event_date ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent inserts the event and its tiers in one transaction so a
// half-created event never becomes purchasable.
func (d *DB) CreateEvent(ctx context.Context, event models.Event, tickets []models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&event).Exec(ctx); err != nil {
			return err
		}
		if len(tickets) > 0 {
			if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
