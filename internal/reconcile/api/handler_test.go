package reconcile_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/payment/barion"
	"ms-storefront/internal/reconcile"
	reconcile_api "ms-storefront/internal/reconcile/api"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Process(ctx context.Context, paymentID string) (*reconcile.Outcome, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Outcome), args.Error(1)
}

func newHandler(engine *MockReconciler) *reconcile_api.Handler {
	cfg := config.BarionConfig{
		WebhookSecret: "hook-secret",
		AllowedCIDRs:  []string{"127.0.0.0/8", "193.224.24.0/24"},
	}
	return reconcile_api.NewHandler(engine, cfg, "http://localhost:3000", logger.NewSilent())
}

func redirectLocation(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestCallbackSucceededRedirectsToSuccessPage(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentSucceeded, Applied: true,
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-1", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	assert.Equal(t, "/checkout/success", loc.Path)
	assert.Equal(t, "order-1", loc.Query().Get("order"))
}

func TestCallbackCanceledRedirectsToErrorPage(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentCanceled,
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-1", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	assert.Equal(t, "/checkout/error", loc.Path)
	assert.Equal(t, "Payment canceled", loc.Query().Get("message"))
}

func TestCallbackUnknownOrderRedirectsWithOrderNotFound(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-x").Return(nil, order.ErrOrderNotFound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-x", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	assert.Equal(t, "Order not found", loc.Query().Get("message"))
}

func TestCallbackGatewayFaultShowsGenericMessage(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(nil, &barion.GatewayError{
		Kind: barion.KindRejected, Message: "InvalidPOSKey: the key is wrong",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-1", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	// Gateway error details must not reach the customer's address bar.
	assert.Equal(t, "Payment verification failed", loc.Query().Get("message"))
}

func TestCallbackMissingPaymentIDRedirectsToError(t *testing.T) {
	engine := new(MockReconciler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	assert.Equal(t, "/checkout/error", loc.Path)
	engine.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestCallbackLogsCompletionOnlyAfterOutcome(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentSucceeded,
	}, nil)

	var buf bytes.Buffer
	cfg := config.BarionConfig{AllowedCIDRs: []string{"127.0.0.0/8"}}
	handler := reconcile_api.NewHandler(engine, cfg, "http://localhost:3000", logger.NewWithOutput(&buf))

	// A request that never reaches the engine must not be logged as a
	// completed redirect.
	rec := httptest.NewRecorder()
	handler.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/payment/callback", nil))
	assert.NotContains(t, buf.String(), "- 303")

	rec = httptest.NewRecorder()
	handler.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-1", nil))
	assert.Contains(t, buf.String(), "- 303")
}

func TestCallbackPendingRedirectsWithStatusMessage(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentPending,
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?paymentId=pay-1", nil)
	newHandler(engine).Callback(rec, req)

	loc := redirectLocation(t, rec)
	assert.Equal(t, "Payment status: Pending", loc.Query().Get("message"))
}

// The gateway notifies with a POST whose JSON body carries the payment id.
func webhookRequest(paymentID, remoteAddr, token string) *http.Request {
	body, _ := json.Marshal(map[string]string{"PaymentId": paymentID})
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestWebhookProcessesFromAllowedSource(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentSucceeded, Applied: true,
	}, nil)

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("pay-1", "127.0.0.1:5000", "hook-secret"))

	assert.Equal(t, http.StatusOK, rec.Code)
	engine.AssertExpectations(t)
}

func TestWebhookRejectsDisallowedSourceIP(t *testing.T) {
	engine := new(MockReconciler)

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("pay-1", "10.1.2.3:5000", "hook-secret"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	engine.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookHonorsForwardedForHeader(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(&reconcile.Outcome{
		OrderID: "order-1", Status: models.PaymentSucceeded,
	}, nil)

	req := webhookRequest("pay-1", "10.0.0.5:5000", "hook-secret")
	req.Header.Set("X-Forwarded-For", "193.224.24.17, 10.0.0.5")

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsBadBearerToken(t *testing.T) {
	engine := new(MockReconciler)

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("pay-1", "127.0.0.1:5000", "wrong-secret"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	engine.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookMissingPaymentIDIsBadRequest(t *testing.T) {
	engine := new(MockReconciler)

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("", "127.0.0.1:5000", "hook-secret"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	engine.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookMalformedBodyIsBadRequest(t *testing.T) {
	engine := new(MockReconciler)

	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader([]byte("{not json")))
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("Authorization", "Bearer hook-secret")

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	engine.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookUnknownOrderIs404(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-x").Return(nil, order.ErrOrderNotFound)

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("pay-x", "127.0.0.1:5000", "hook-secret"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookEngineFailureIs500(t *testing.T) {
	engine := new(MockReconciler)
	engine.On("Process", mock.Anything, "pay-1").Return(nil, errors.New("db down"))

	rec := httptest.NewRecorder()
	newHandler(engine).Webhook(rec, webhookRequest("pay-1", "127.0.0.1:5000", "hook-secret"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
