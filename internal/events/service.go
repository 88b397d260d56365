package events

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

var ErrEventNotFound = errors.New("event not found")

type DBLayer interface {
	GetEventByID(ctx context.Context, eventID string) (*models.Event, error)
	GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	CreateEvent(ctx context.Context, event models.Event, tickets []models.Ticket) error
}

type EventService struct {
	DB       DBLayer
	Logger   *logger.Logger
	validate *validator.Validate
}

func NewEventService(db DBLayer, log *logger.Logger) *EventService {
	return &EventService{
		DB:       db,
		Logger:   log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *EventService) Get(ctx context.Context, eventID string) (*models.EventWithTickets, error) {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	tickets, err := s.DB.GetTicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &models.EventWithTickets{Event: *event, Tickets: tickets}, nil
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

// GetTicketByID satisfies the tier lookup checkout needs when pricing a
// cart against the catalog.
func (s *EventService) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.DB.GetTicketByID(ctx, ticketID)
}

// Create adds an event and its tiers. Every tier starts fully available.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.EventWithTickets, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now()
	event := models.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		Location:    req.Location,
		CreatedAt:   now,
	}

	tickets := make([]models.Ticket, 0, len(req.Tickets))
	for _, tier := range req.Tickets {
		tickets = append(tickets, models.Ticket{
			ID:                uuid.New().String(),
			EventID:           event.ID,
			Name:              tier.Name,
			Price:             tier.Price,
			Quantity:          tier.Quantity,
			QuantityAvailable: tier.Quantity,
			CreatedAt:         now,
		})
	}

	if err := s.DB.CreateEvent(ctx, event, tickets); err != nil {
		return nil, err
	}

	s.Logger.Info("EVENT", fmt.Sprintf("created event %s (%s) with %d tiers", event.ID, event.Title, len(tickets)))
	return &models.EventWithTickets{Event: event, Tickets: tickets}, nil
}
