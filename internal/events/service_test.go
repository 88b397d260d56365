package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/events"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockDBLayer) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockDBLayer) ListEvents(ctx context.Context) ([]models.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockDBLayer) CreateEvent(ctx context.Context, event models.Event, tickets []models.Ticket) error {
	args := m.Called(ctx, event, tickets)
	return args.Error(0)
}

func newService(db *MockDBLayer) *events.EventService {
	return events.NewEventService(db, logger.NewSilent())
}

func TestGetJoinsEventWithTiers(t *testing.T) {
	db := new(MockDBLayer)
	db.On("GetEventByID", mock.Anything, "event-1").Return(&models.Event{
		ID: "event-1", Title: "Budapest Jazz Night",
	}, nil)
	db.On("GetTicketsByEvent", mock.Anything, "event-1").Return([]models.Ticket{
		{ID: "tier-ga", Name: "General Admission", Price: 5000},
		{ID: "tier-vip", Name: "VIP", Price: 15000},
	}, nil)

	event, err := newService(db).Get(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, "Budapest Jazz Night", event.Title)
	assert.Len(t, event.Tickets, 2)
}

func TestGetUnknownEventIsNotFound(t *testing.T) {
	db := new(MockDBLayer)
	db.On("GetEventByID", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	_, err := newService(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestCreateStartsTiersFullyAvailable(t *testing.T) {
	db := new(MockDBLayer)
	db.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	created, err := newService(db).Create(context.Background(), models.CreateEventRequest{
		Title:     "Budapest Jazz Night",
		EventDate: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		Location:  "Akvarium Klub",
		Tickets: []models.CreateTierRequest{
			{Name: "General Admission", Price: 5000, Quantity: 100},
			{Name: "VIP", Price: 15000, Quantity: 20},
		},
	})
	require.NoError(t, err)
	require.Len(t, created.Tickets, 2)
	assert.NotEmpty(t, created.ID)
	for _, tier := range created.Tickets {
		assert.Equal(t, created.ID, tier.EventID)
		assert.Equal(t, tier.Quantity, tier.QuantityAvailable)
		assert.NotEmpty(t, tier.ID)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	db := new(MockDBLayer)

	_, err := newService(db).Create(context.Background(), models.CreateEventRequest{
		Title: "No tiers, no date",
	})
	require.Error(t, err)
	db.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRejectsZeroQuantityTier(t *testing.T) {
	db := new(MockDBLayer)

	_, err := newService(db).Create(context.Background(), models.CreateEventRequest{
		Title:     "Budapest Jazz Night",
		EventDate: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		Location:  "Akvarium Klub",
		Tickets:   []models.CreateTierRequest{{Name: "Free", Price: 0, Quantity: 0}},
	})
	require.Error(t, err)
	db.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
}
