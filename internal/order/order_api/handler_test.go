package order_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/order/order_api"
	"ms-storefront/internal/payment/barion"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, o models.Order, items []models.OrderItem) error {
	args := m.Called(ctx, o, items)
	return args.Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderWithItems(ctx context.Context, id string) (*models.OrderWithItems, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderWithItems), args.Error(1)
}

func (m *MockDBLayer) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByPaymentRequestID(ctx context.Context, requestID string) (*models.Order, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *MockDBLayer) AttachPaymentID(ctx context.Context, orderID, paymentID string) error {
	args := m.Called(ctx, orderID, paymentID)
	return args.Error(0)
}

func (m *MockDBLayer) MarkPaid(ctx context.Context, orderID, paymentID string) (bool, error) {
	args := m.Called(ctx, orderID, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) MarkCancelled(ctx context.Context, orderID, paymentID string) (bool, error) {
	args := m.Called(ctx, orderID, paymentID)
	return args.Bool(0), args.Error(1)
}

type MockTierReader struct {
	mock.Mock
}

func (m *MockTierReader) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Start(ctx context.Context, req barion.StartRequest) (*barion.StartResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*barion.StartResult), args.Error(1)
}

func appConfig() config.AppConfig {
	return config.AppConfig{BaseURL: "http://localhost:3000", Currency: "HUF", Locale: "hu-HU"}
}

func newRouter(db *MockDBLayer, tiers *MockTierReader, gateway order_api.Gateway) http.Handler {
	service := order.NewOrderService(db, tiers, logger.NewSilent())
	handler := order_api.NewHandler(service, gateway, tiers, nil, appConfig(), logger.NewSilent())

	r := chi.NewRouter()
	r.Post("/api/checkout", handler.Checkout)
	r.Get("/api/orders/{orderId}", handler.GetOrder)
	return r
}

func gaTier() *models.Ticket {
	return &models.Ticket{
		ID: "tier-ga", EventID: "event-1", Name: "General Admission",
		Price: 5000, Quantity: 100, QuantityAvailable: 50,
	}
}

func checkoutBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(models.CheckoutRequest{
		CustomerName:  "Kovacs Anna",
		CustomerEmail: "anna@example.com",
		EventID:       "event-1",
		TotalAmount:   10000,
		Items:         []models.CheckoutItem{{TicketID: "tier-ga", Quantity: 2}},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestCheckoutCreatesOrderAndStartsPayment(t *testing.T) {
	db := new(MockDBLayer)
	tiers := new(MockTierReader)
	gateway := new(MockGateway)

	tiers.On("GetTicketByID", mock.Anything, "tier-ga").Return(gaTier(), nil)
	db.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gateway.On("Start", mock.Anything, mock.MatchedBy(func(req barion.StartRequest) bool {
		return req.Amount == 10000 && req.Currency == "HUF" && len(req.Items) == 1 && req.Items[0].Name == "General Admission"
	})).Return(&barion.StartResult{
		PaymentID:  "pay-123",
		GatewayURL: "https://gateway.example/pay-123",
		Status:     models.PaymentPending,
	}, nil)
	db.On("AttachPaymentID", mock.Anything, mock.AnythingOfType("string"), "pay-123").Return(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", checkoutBody(t))
	newRouter(db, tiers, gateway).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data models.CheckoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.OrderID)
	assert.Equal(t, "pay-123", resp.Data.PaymentID)
	assert.Equal(t, "https://gateway.example/pay-123", resp.Data.GatewayURL)
	db.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

type checkoutCtxKey struct{}

func TestCheckoutTierLookupsUseRequestContext(t *testing.T) {
	db := new(MockDBLayer)
	tiers := new(MockTierReader)
	gateway := new(MockGateway)

	// The mock only matches lookups carrying the request's context value,
	// so a lookup on a detached context fails the expectation.
	fromRequest := mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Value(checkoutCtxKey{}) == "checkout"
	})
	tiers.On("GetTicketByID", fromRequest, "tier-ga").Return(gaTier(), nil)
	db.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gateway.On("Start", mock.Anything, mock.Anything).Return(&barion.StartResult{
		PaymentID:  "pay-123",
		GatewayURL: "https://gateway.example/pay-123",
		Status:     models.PaymentPending,
	}, nil)
	db.On("AttachPaymentID", mock.Anything, mock.AnythingOfType("string"), "pay-123").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", checkoutBody(t))
	req = req.WithContext(context.WithValue(req.Context(), checkoutCtxKey{}, "checkout"))

	rec := httptest.NewRecorder()
	newRouter(db, tiers, gateway).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	tiers.AssertExpectations(t)
}

func TestCheckoutValidationFaultIs400WithMessage(t *testing.T) {
	db := new(MockDBLayer)
	tiers := new(MockTierReader)
	low := gaTier()
	low.QuantityAvailable = 1
	tiers.On("GetTicketByID", mock.Anything, "tier-ga").Return(low, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", checkoutBody(t))
	newRouter(db, tiers, new(MockGateway)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enough tickets available")
	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutGatewayFaultIs502Generic(t *testing.T) {
	db := new(MockDBLayer)
	tiers := new(MockTierReader)
	gateway := new(MockGateway)

	tiers.On("GetTicketByID", mock.Anything, "tier-ga").Return(gaTier(), nil)
	db.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gateway.On("Start", mock.Anything, mock.Anything).Return(nil, &barion.GatewayError{
		Kind: barion.KindRejected, Message: "InvalidPOSKey: the key is wrong",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", checkoutBody(t))
	newRouter(db, tiers, gateway).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	// Gateway internals must not leak into the response body.
	assert.NotContains(t, rec.Body.String(), "InvalidPOSKey")
}

func TestCheckoutInvalidJSONIs400(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader([]byte("{broken")))
	newRouter(new(MockDBLayer), new(MockTierReader), new(MockGateway)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderReturnsOrderWithItems(t *testing.T) {
	db := new(MockDBLayer)
	db.On("GetOrderWithItems", mock.Anything, "order-1").Return(&models.OrderWithItems{
		Order: models.Order{ID: "order-1", Status: models.OrderStatusPaid, TotalAmount: 10000},
		Items: []models.OrderItem{{ID: "item-1", OrderID: "order-1", Quantity: 2}},
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/order-1", nil)
	newRouter(db, new(MockTierReader), new(MockGateway)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data models.OrderWithItems `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.Data.ID)
	assert.Len(t, resp.Data.Items, 1)
}

func TestGetOrderUnknownIDIs404(t *testing.T) {
	db := new(MockDBLayer)
	db.On("GetOrderWithItems", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/nope", nil)
	newRouter(db, new(MockTierReader), new(MockGateway)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
