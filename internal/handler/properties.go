package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
)

// PropertyHandler serves listing endpoints.
type PropertyHandler struct {
	properties *service.PropertyService
	logger     *slog.Logger
}

func NewPropertyHandler(properties *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{properties: properties, logger: logger}
}

// List handles GET /properties?owner_id=&city=&available=&limit=&offset=
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	filter := domain.PropertyFilter{
		OwnerID: q.Get("owner_id"),
		City:    q.Get("city"),
	}
	if raw := q.Get("available"); raw != "" {
		filter.AvailableOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return domain.Invalid("available must be a boolean")
		}
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		return err
	}

	properties, err := h.properties.List(r.Context(), actor, filter)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, properties)
}

// Get handles GET /properties/{id}
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	p, err := h.properties.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

// Create handles POST /properties
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	var req service.CreatePropertyInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	p, err := h.properties.Create(r.Context(), actor, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, p)
}
