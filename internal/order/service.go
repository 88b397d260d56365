package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// ValidationError is a caller fault; its message is safe to surface
// verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

type DBLayer interface {
	CreateOrder(ctx context.Context, order models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, id string) (*models.OrderWithItems, error)
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	GetOrderByPaymentRequestID(ctx context.Context, requestID string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	AttachPaymentID(ctx context.Context, orderID, paymentID string) error
	MarkPaid(ctx context.Context, orderID, paymentID string) (bool, error)
	MarkCancelled(ctx context.Context, orderID, paymentID string) (bool, error)
}

// TierReader supplies current tier data so prices are frozen server-side at
// purchase time, independent of whatever the client claims.
type TierReader interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
}

type OrderService struct {
	DB       DBLayer
	Tiers    TierReader
	Logger   *logger.Logger
	validate *validator.Validate
}

func NewOrderService(db DBLayer, tiers TierReader, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Tiers:    tiers,
		Logger:   log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create builds a pending order with one check-in token per line item.
// Nothing is reserved here; inventory moves only when reconciliation
// confirms payment.
func (s *OrderService) Create(ctx context.Context, req models.CheckoutRequest) (*models.OrderWithItems, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	orderID := uuid.NewString()
	now := time.Now()

	var total int64
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		tier, err := s.Tiers.GetTicketByID(ctx, line.TicketID)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("unknown ticket tier %s", line.TicketID)}
		}
		if tier.EventID != req.EventID {
			return nil, &ValidationError{Msg: fmt.Sprintf("ticket tier %s does not belong to event %s", line.TicketID, req.EventID)}
		}
		if tier.QuantityAvailable < line.Quantity {
			return nil, &ValidationError{Msg: fmt.Sprintf("not enough tickets available for %s", tier.Name)}
		}

		total += tier.Price * int64(line.Quantity)
		items = append(items, models.OrderItem{
			ID:              uuid.NewString(),
			OrderID:         orderID,
			TicketID:        tier.ID,
			Quantity:        line.Quantity,
			PriceAtPurchase: tier.Price,
			CheckInToken:    uuid.NewString(),
			CreatedAt:       now,
		})
	}

	if req.TotalAmount != total {
		return nil, &ValidationError{Msg: fmt.Sprintf("order total %d does not match line item sum %d", req.TotalAmount, total)}
	}

	order := models.Order{
		ID:               orderID,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		EventID:          req.EventID,
		TotalAmount:      total,
		Status:           models.OrderStatusPending,
		PaymentRequestID: uuid.NewString(),
		CreatedAt:        now,
	}

	if err := s.DB.CreateOrder(ctx, order, items); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.Logger.LogOrder("CREATE", orderID, fmt.Sprintf("pending order for %s, total %d", req.CustomerEmail, total))
	return &models.OrderWithItems{Order: order, Items: items}, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.OrderWithItems, error) {
	order, err := s.DB.GetOrderWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) FindByPaymentRequestID(ctx context.Context, requestID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByPaymentRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return s.DB.GetItemsByOrder(ctx, orderID)
}

func (s *OrderService) AttachPaymentID(ctx context.Context, orderID, paymentID string) error {
	return s.DB.AttachPaymentID(ctx, orderID, paymentID)
}

// SetPaymentOutcome applies a terminal status. The underlying writes are
// pending-only compare-and-sets, so calling it on an order that is already
// terminal is a no-op (applied=false, no error) rather than a failure -
// that is what makes reconciliation safe to re-invoke.
func (s *OrderService) SetPaymentOutcome(ctx context.Context, orderID, paymentID, status string) (bool, error) {
	var (
		applied bool
		err     error
	)
	switch status {
	case models.OrderStatusPaid:
		applied, err = s.DB.MarkPaid(ctx, orderID, paymentID)
	case models.OrderStatusCancelled:
		applied, err = s.DB.MarkCancelled(ctx, orderID, paymentID)
	default:
		return false, fmt.Errorf("invalid payment outcome status %q", status)
	}
	if err != nil {
		return false, fmt.Errorf("failed to set order %s to %s: %w", orderID, status, err)
	}
	if applied {
		s.Logger.LogOrder("OUTCOME", orderID, fmt.Sprintf("status set to %s (payment %s)", status, paymentID))
	}
	return applied, nil
}
