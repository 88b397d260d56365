package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/config"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/payment/barion"
	"ms-storefront/internal/utils"
)

// Gateway is the payment surface checkout needs. nil means no gateway is
// configured and orders are created without a hosted payment page.
type Gateway interface {
	Start(ctx context.Context, req barion.StartRequest) (*barion.StartResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Handler struct {
	OrderService *order.OrderService
	Gateway      Gateway
	Tiers        order.TierReader
	Publisher    Publisher
	App          config.AppConfig
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, gateway Gateway, tiers order.TierReader, publisher Publisher, app config.AppConfig, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Gateway:      gateway,
		Tiers:        tiers,
		Publisher:    publisher,
		App:          app,
		Logger:       log,
	}
}

// Checkout creates a pending order and opens a payment at the gateway.
// The customer pays on the gateway's hosted page; until reconciliation
// confirms that payment, no inventory moves.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	created, err := h.OrderService.Create(r.Context(), req)
	if err != nil {
		var validationErr *order.ValidationError
		if errors.As(err, &validationErr) {
			utils.WriteError(w, http.StatusBadRequest, "Validation failed", validationErr.Msg)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Checkout: order creation failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Checkout failed", "could not create order")
		return
	}

	h.publishCreated(r.Context(), created)

	if h.Gateway == nil {
		h.Logger.Warn("API", fmt.Sprintf("Checkout: no payment gateway configured, order %s left pending", created.ID))
		utils.WriteSuccess(w, http.StatusCreated, "order created", models.CheckoutResponse{OrderID: created.ID})
		return
	}

	result, err := h.Gateway.Start(r.Context(), h.startRequest(r.Context(), created))
	if err != nil {
		// Gateway details stay in the log; customers get a generic fault.
		h.Logger.Error("API", fmt.Sprintf("Checkout: Payment/Start failed for order %s: %v", created.ID, err))
		utils.WriteError(w, http.StatusBadGateway, "Payment gateway unavailable", "could not start payment")
		return
	}

	if err := h.OrderService.AttachPaymentID(r.Context(), created.ID, result.PaymentID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to attach payment %s to order %s: %v", result.PaymentID, created.ID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Checkout failed", "could not record payment")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusCreated)
	utils.WriteSuccess(w, http.StatusCreated, "order created", models.CheckoutResponse{
		OrderID:    created.ID,
		PaymentID:  result.PaymentID,
		GatewayURL: result.GatewayURL,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Order not found", "no order with that id")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetOrder: lookup failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Lookup failed", "could not load order")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	utils.WriteSuccess(w, http.StatusOK, "order", orderData)
}

func (h *Handler) startRequest(ctx context.Context, created *models.OrderWithItems) barion.StartRequest {
	items := make([]barion.StartItem, 0, len(created.Items))
	for _, item := range created.Items {
		name := item.TicketID
		if tier, err := h.Tiers.GetTicketByID(ctx, item.TicketID); err == nil {
			name = tier.Name
		}
		items = append(items, barion.StartItem{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.PriceAtPurchase,
			ItemTotal: item.PriceAtPurchase * int64(item.Quantity),
		})
	}

	return barion.StartRequest{
		PaymentRequestID: created.PaymentRequestID,
		OrderID:          created.ID,
		Amount:           created.TotalAmount,
		Currency:         h.App.Currency,
		Locale:           h.App.Locale,
		RedirectURL:      h.App.BaseURL + "/api/payment/callback",
		CallbackURL:      h.App.BaseURL + "/api/payment/webhook",
		CustomerEmail:    created.CustomerEmail,
		Items:            items,
	}
}

func (h *Handler) publishCreated(ctx context.Context, created *models.OrderWithItems) {
	if h.Publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"order_id":     created.ID,
		"event_id":     created.EventID,
		"total_amount": created.TotalAmount,
		"created_at":   time.Now(),
	})
	if err != nil {
		return
	}
	if err := h.Publisher.Publish(ctx, kafka.TopicOrderCreated, created.ID, payload); err != nil {
		h.Logger.Error("KAFKA", fmt.Sprintf("failed to publish order created event for %s: %v", created.ID, err))
	}
}
