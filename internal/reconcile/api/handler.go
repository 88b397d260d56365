package reconcile_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/reconcile"
	"ms-storefront/internal/utils"
)

// Reconciler is the engine surface the two notification channels share.
type Reconciler interface {
	Process(ctx context.Context, paymentID string) (*reconcile.Outcome, error)
}

// Handler exposes the gateway's two notification channels. The redirect
// callback carries the customer's browser and answers with redirects to
// storefront pages; the webhook is server-to-server and answers JSON.
type Handler struct {
	Engine        Reconciler
	Logger        *logger.Logger
	appBaseURL    string
	webhookSecret string
	allowedNets   []*net.IPNet
}

func NewHandler(engine Reconciler, cfg config.BarionConfig, appBaseURL string, log *logger.Logger) *Handler {
	nets := make([]*net.IPNet, 0, len(cfg.AllowedCIDRs))
	for _, cidr := range cfg.AllowedCIDRs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			log.Warn("SECURITY", fmt.Sprintf("ignoring malformed webhook CIDR %q: %v", cidr, err))
			continue
		}
		nets = append(nets, network)
	}

	return &Handler{
		Engine:        engine,
		Logger:        log,
		appBaseURL:    strings.TrimRight(appBaseURL, "/"),
		webhookSecret: cfg.WebhookSecret,
		allowedNets:   nets,
	}
}

// Callback handles the customer's return from the hosted payment page.
// Whatever happens, the browser ends up on a storefront page; errors are
// shown generically so gateway internals never leak to customers.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("paymentId")

	if paymentID == "" {
		h.redirectError(w, r, "Missing payment reference")
		return
	}

	outcome, err := h.Engine.Process(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			h.redirectError(w, r, "Order not found")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Callback: reconciliation failed for payment %s: %v", paymentID, err))
		h.redirectError(w, r, "Payment verification failed")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusSeeOther)
	switch outcome.Status {
	case models.PaymentSucceeded:
		h.redirect(w, r, "/checkout/success?order="+url.QueryEscape(outcome.OrderID))
	case models.PaymentCanceled:
		h.redirectError(w, r, "Payment canceled")
	case models.PaymentFailed:
		h.redirectError(w, r, "Payment failed")
	default:
		h.redirectError(w, r, fmt.Sprintf("Payment status: %s", outcome.Status))
	}
}

// webhookNotification is the gateway's POST body. Only the payment id is
// read; any status field it carries is ignored in favor of a fresh
// GetPaymentState query.
type webhookNotification struct {
	PaymentID string `json:"PaymentId"`
}

// Webhook handles the gateway's server-to-server notification. Requests
// are accepted only from the gateway's published network ranges and must
// carry the shared bearer secret.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.sourceAllowed(r) {
		h.Logger.LogSecurity("WEBHOOK", fmt.Sprintf("rejected webhook from unauthorized address %s", r.RemoteAddr))
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "source address not allowed")
		return
	}
	if !h.secretValid(r) {
		h.Logger.LogSecurity("WEBHOOK", "rejected webhook with missing or invalid bearer token")
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	var notification webhookNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "malformed notification body")
		return
	}
	if notification.PaymentID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "PaymentId is required")
		return
	}
	paymentID := notification.PaymentID

	outcome, err := h.Engine.Process(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Order not found", "no order for payment id")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Webhook: reconciliation failed for payment %s: %v", paymentID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Reconciliation failed", "payment state could not be verified")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	utils.WriteSuccess(w, http.StatusOK, "processed", outcome)
}

func (h *Handler) sourceAllowed(r *http.Request) bool {
	if len(h.allowedNets) == 0 {
		return true
	}
	ip := clientIP(r)
	if ip == nil {
		return false
	}
	for _, network := range h.allowedNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (h *Handler) secretValid(r *http.Request) bool {
	if h.webhookSecret == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return auth == "Bearer "+h.webhookSecret
}

// clientIP prefers proxy headers so the allowlist still works behind the
// usual reverse proxy, falling back to the socket address.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if ip := net.ParseIP(real); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.appBaseURL+path, http.StatusSeeOther)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	h.redirect(w, r, "/checkout/error?message="+url.QueryEscape(message))
}
