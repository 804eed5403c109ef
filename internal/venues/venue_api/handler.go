package venue_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-venues/internal/logger"
	"ms-venues/internal/models"
	"ms-venues/internal/utils"
	"ms-venues/internal/venues/query"
	"ms-venues/internal/venues/service"
)

// maxBodyBytes caps create and update payloads.
const maxBodyBytes = 1 << 20

type VenueService interface {
	List(ctx context.Context, spec query.Spec) (*service.ListResult, error)
	GetByID(ctx context.Context, id string) (*models.VenueDetail, error)
	Create(ctx context.Context, patch models.VenuePatch) (*models.Venue, error)
	Update(ctx context.Context, id string, patch models.VenuePatch) (*models.Venue, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	Service VenueService
	Queries *query.Builder
	Logger  *logger.Logger
}

func NewHandler(svc VenueService, queries *query.Builder, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Service: svc, Queries: queries, Logger: log}
}

// RegisterRoutes mounts the venue routes under /venues.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/venues", func(r chi.Router) {
		r.Get("/", h.ListVenues)
		r.Post("/", h.CreateVenue)
		r.Get("/{venueId}", h.GetVenue)
		r.Put("/{venueId}", h.UpdateVenue)
		r.Delete("/{venueId}", h.DeleteVenue)
	})
}

func (h *Handler) ListVenues(w http.ResponseWriter, r *http.Request) {
	spec, err := h.Queries.Build(r.URL.Query())
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.List(r.Context(), spec)
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.ListResponse{
		Success:    true,
		Count:      result.Count,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		Data:       result.Venues,
	})
}

func (h *Handler) GetVenue(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "venueId"))
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(detail))
}

func (h *Handler) CreateVenue(w http.ResponseWriter, r *http.Request) {
	patch, err := models.DecodeVenuePatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}

	venue, err := h.Service.Create(r.Context(), patch)
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(venue))
}

func (h *Handler) UpdateVenue(w http.ResponseWriter, r *http.Request) {
	patch, err := models.DecodeVenuePatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}

	venue, err := h.Service.Update(r.Context(), chi.URLParam(r, "venueId"), patch)
	if err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(venue))
}

func (h *Handler) DeleteVenue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venueId")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		utils.RespondError(w, r, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.MessageResponse(fmt.Sprintf("Venue with ID %s deleted successfully", id)))
}
