package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

// DB loads check-in tokens and claims them with a conditional update, so
// two gate scanners racing on the same token cannot both admit it.
type DB struct {
	Bun *bun.DB
}

func NewDB(b *bun.DB) *DB {
	return &DB{Bun: b}
}

func (d *DB) GetItemByToken(ctx context.Context, token string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := d.Bun.NewSelect().Model(&item).Where("check_in_token = ?", token).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().Model(&order).Where("id = ?", orderID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().Model(&ticket).Where("id = ?", ticketID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ClaimItem stamps used_at only when the item is still unused. Returns
// false when another scan already claimed the token.
func (d *DB) ClaimItem(ctx context.Context, itemID string, usedAt time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.OrderItem)(nil)).
		Set("used_at = ?", usedAt).
		Where("id = ?", itemID).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
