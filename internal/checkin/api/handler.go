package checkin_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/checkin"
	"ms-storefront/internal/checkin/qr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"
)

type Handler struct {
	Service *checkin.CheckinService
	QR      *qr.Generator
	Logger  *logger.Logger
}

func NewHandler(service *checkin.CheckinService, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{Service: service, QR: qrGen, Logger: log}
}

type checkinRequest struct {
	Token string `json:"token"`
}

// Checkin validates a scanned token at the gate.
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Token == "" {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "token is required")
		return
	}

	result, err := h.Service.Validate(r.Context(), req.Token)
	if err != nil {
		var notConfirmed *checkin.PaymentNotConfirmedError
		switch {
		case errors.Is(err, checkin.ErrTokenNotFound):
			utils.WriteError(w, http.StatusNotFound, "Ticket not found", "unknown check-in token")
		case errors.As(err, &notConfirmed):
			utils.WriteError(w, http.StatusConflict, "Payment not confirmed", notConfirmed.Error())
		default:
			h.Logger.Error("API", fmt.Sprintf("Checkin: validation failed: %v", err))
			utils.WriteError(w, http.StatusInternalServerError, "Check-in failed", "could not validate ticket")
		}
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	if result.AlreadyUsed {
		utils.WriteSuccess(w, http.StatusOK, "ticket already used", result)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "ticket admitted", result)
}

// GetTicket serves the hosted ticket page data for a token.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	details, err := h.Service.TicketDetails(r.Context(), token)
	if err != nil {
		if errors.Is(err, checkin.ErrTokenNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket not found", "unknown check-in token")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetTicket: lookup failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Lookup failed", "could not load ticket")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	utils.WriteSuccess(w, http.StatusOK, "ticket", details)
}

// GetTicketQR renders the ticket's QR code as a PNG. The token's
// existence is checked first so unknown tokens 404 instead of producing
// a scannable dead link.
func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if _, err := h.Service.TicketDetails(r.Context(), token); err != nil {
		if errors.Is(err, checkin.ErrTokenNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket not found", "unknown check-in token")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetTicketQR: lookup failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Lookup failed", "could not load ticket")
		return
	}

	png, err := h.QR.TicketPNG(token)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketQR: encode failed: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "QR generation failed", "could not render code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
