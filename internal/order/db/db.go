package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder inserts an order and its line items in one transaction.
func (d *DB) CreateOrder(ctx context.Context, order models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderWithItems(ctx context.Context, id string) (*models.OrderWithItems, error) {
	order, err := d.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := d.GetItemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

// GetOrderByPaymentID correlates a gateway notification with an order once
// the gateway has assigned its payment id.
func (d *DB) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentRequestID correlates before the gateway id exists, using
// the client-generated id sent with Payment/Start.
func (d *DB) GetOrderByPaymentRequestID(ctx context.Context, requestID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_request_id = ?", requestID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("created_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AttachPaymentID records the gateway-assigned payment id after
// Payment/Start succeeds.
func (d *DB) AttachPaymentID(ctx context.Context, orderID, paymentID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_id = ?", paymentID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// MarkPaid flips a pending order to paid in a single conditional UPDATE and
// reports whether this call performed the transition. The status guard is
// what linearizes concurrent redirect and webhook reconciliations: only one
// caller ever observes true.
func (d *DB) MarkPaid(ctx context.Context, orderID, paymentID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusPaid).
		Set("payment_id = ?", paymentID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("status = ?", models.OrderStatusPending).
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

// MarkCancelled uses the same pending-only guard, so a late failure
// notification can never downgrade a paid order.
func (d *DB) MarkCancelled(ctx context.Context, orderID, paymentID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusCancelled).
		Set("payment_id = ?", paymentID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("status = ?", models.OrderStatusPending).
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
