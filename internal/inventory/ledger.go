package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrTicketNotFound        = errors.New("ticket tier not found")
)

// Ledger tracks per-tier availability. Decrement and Restock are single
// conditional UPDATEs so concurrent callers cannot lose updates or drive
// quantity_available outside [0, quantity].
type Ledger struct {
	Bun *bun.DB
}

func NewLedger(bunDB *bun.DB) *Ledger {
	return &Ledger{Bun: bunDB}
}

// Decrement reduces quantity_available by amount, failing with
// ErrInsufficientInventory if the result would go below zero. There is no
// implicit rollback once committed; Restock is the explicit compensation.
func (l *Ledger) Decrement(ctx context.Context, ticketID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("decrement amount must be positive, got %d", amount)
	}

	res, err := l.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("quantity_available = quantity_available - ?", amount).
		Where("id = ?", ticketID).
		Where("quantity_available >= ?", amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("decrement tier %s: %w", ticketID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		exists, err := l.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("id = ?", ticketID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrTicketNotFound
		}
		return ErrInsufficientInventory
	}
	return nil
}

// Restock is the explicit operator-driven compensation. It never pushes
// quantity_available past the tier's total quantity and is never called
// from the reconciliation path.
func (l *Ledger) Restock(ctx context.Context, ticketID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("restock amount must be positive, got %d", amount)
	}

	res, err := l.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("quantity_available = quantity_available + ?", amount).
		Where("id = ?", ticketID).
		Where("quantity_available + ? <= quantity", amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("restock tier %s: %w", ticketID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		exists, err := l.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("id = ?", ticketID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrTicketNotFound
		}
		return fmt.Errorf("restock of %d would exceed tier %s capacity", amount, ticketID)
	}
	return nil
}

// Available returns the current quantity_available for a tier.
func (l *Ledger) Available(ctx context.Context, ticketID string) (int, error) {
	var ticket models.Ticket
	err := l.Bun.NewSelect().
		Model(&ticket).
		Column("quantity_available").
		Where("id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, ErrTicketNotFound
	}
	return ticket.QuantityAvailable, nil
}
