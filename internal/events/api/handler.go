package events_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ms-storefront/internal/events"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type Handler struct {
	Service *events.EventService
	Logger  *logger.Logger
}

func NewHandler(service *events.EventService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Listing failed", "could not load events")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	utils.WriteSuccess(w, http.StatusOK, "events", list)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.Service.Get(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Event not found", "no event with that id")
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetEvent: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Lookup failed", "could not load event")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusOK)
	utils.WriteSuccess(w, http.StatusOK, "event", event)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	event, err := h.Service.Create(r.Context(), req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			utils.WriteError(w, http.StatusBadRequest, "Validation failed", validationErrs.Error())
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Creation failed", "could not create event")
		return
	}

	h.Logger.LogAPI(r.Method, r.URL.Path, http.StatusCreated)
	utils.WriteSuccess(w, http.StatusCreated, "event created", event)
}
