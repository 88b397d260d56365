package checkin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

var ErrTokenNotFound = errors.New("check-in token not found")

// PaymentNotConfirmedError means the token exists but its order never
// reached paid status; the gate must not admit it.
type PaymentNotConfirmedError struct {
	Status string
}

func (e *PaymentNotConfirmedError) Error() string {
	return fmt.Sprintf("order payment not confirmed (status %s)", e.Status)
}

type DBLayer interface {
	GetItemByToken(ctx context.Context, token string) (*models.OrderItem, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetEventByID(ctx context.Context, eventID string) (*models.Event, error)
	ClaimItem(ctx context.Context, itemID string, usedAt time.Time) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Result is the gate's answer for one scan. AlreadyUsed distinguishes a
// replayed token from a fresh admit; both carry the holder's details so
// staff can resolve disputes at the door.
type Result struct {
	OK            bool       `json:"ok"`
	AlreadyUsed   bool       `json:"already_used"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	TicketName    string     `json:"ticket_name"`
	Quantity      int        `json:"quantity"`
}

type CheckinService struct {
	DB        DBLayer
	Publisher Publisher
	Logger    *logger.Logger
}

func NewCheckinService(db DBLayer, publisher Publisher, log *logger.Logger) *CheckinService {
	return &CheckinService{DB: db, Publisher: publisher, Logger: log}
}

// Validate admits a token at most once. The claim is a conditional
// update; when it loses a race the item is re-read so the caller sees
// the winning scan's timestamp.
func (s *CheckinService) Validate(ctx context.Context, token string) (*Result, error) {
	item, err := s.DB.GetItemByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	order, err := s.DB.GetOrderByID(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid {
		s.Logger.LogSecurity("CHECKIN", fmt.Sprintf("token %s scanned on unpaid order %s (status %s)", token, order.ID, order.Status))
		return nil, &PaymentNotConfirmedError{Status: order.Status}
	}

	ticket, err := s.DB.GetTicketByID(ctx, item.TicketID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		TicketName:    ticket.Name,
		Quantity:      item.Quantity,
	}

	if item.UsedAt != nil {
		result.AlreadyUsed = true
		result.UsedAt = item.UsedAt
		return result, nil
	}

	now := time.Now()
	claimed, err := s.DB.ClaimItem(ctx, item.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race; the winner's used_at is authoritative.
		fresh, err := s.DB.GetItemByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		result.AlreadyUsed = true
		result.UsedAt = fresh.UsedAt
		return result, nil
	}

	result.OK = true
	result.UsedAt = &now

	s.publishUsed(ctx, order.ID, token)
	s.Logger.Info("CHECKIN", fmt.Sprintf("token %s admitted for order %s (%d x %s)", token, order.ID, item.Quantity, ticket.Name))
	return result, nil
}

// TicketDetails serves the hosted ticket page: the line item joined with
// its order, tier and event. No mutation happens here.
func (s *CheckinService) TicketDetails(ctx context.Context, token string) (*models.TicketDetails, error) {
	item, err := s.DB.GetItemByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	order, err := s.DB.GetOrderByID(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.DB.GetTicketByID(ctx, item.TicketID)
	if err != nil {
		return nil, err
	}
	event, err := s.DB.GetEventByID(ctx, order.EventID)
	if err != nil {
		return nil, err
	}

	return &models.TicketDetails{
		Token:           item.CheckInToken,
		TicketName:      ticket.Name,
		Quantity:        item.Quantity,
		PriceAtPurchase: item.PriceAtPurchase,
		UsedAt:          item.UsedAt,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		OrderStatus:     order.Status,
		EventTitle:      event.Title,
		EventDate:       event.EventDate,
		Location:        event.Location,
	}, nil
}

func (s *CheckinService) publishUsed(ctx context.Context, orderID, token string) {
	if s.Publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"order_id": orderID,
		"token":    token,
		"used_at":  time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.Publisher.Publish(ctx, kafka.TopicTicketUsed, orderID, payload); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish check-in event for order %s: %v", orderID, err))
	}
}
