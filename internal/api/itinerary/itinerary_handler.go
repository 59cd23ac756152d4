package itinerary

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/mjRam27/Explorix/app/middleware"
	"github.com/mjRam27/Explorix/internal/api"
	"github.com/mjRam27/Explorix/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// SaveFromText handles POST /itinerary/from-text.
func (h *Handler) SaveFromText(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "SaveFromText", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute("/itinerary/from-text"),
	))
	defer span.End()

	userID, ok := h.userID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	var req types.SaveFromTextRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.SaveFromText(ctx, userID, req)
	if err != nil {
		h.writeError(w, r, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary saved")
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{"id": id.String()})
}

// SaveFromDraft handles POST /itinerary/from-draft.
func (h *Handler) SaveFromDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "SaveFromDraft", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute("/itinerary/from-draft"),
	))
	defer span.End()

	userID, ok := h.userID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	var req types.SaveFromDraftRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.SaveFromDraft(ctx, userID, req.Draft)
	if err != nil {
		h.writeError(w, r, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary saved")
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{"id": id.String()})
}

// ListMine handles GET /itinerary/my.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "ListMine", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute("/itinerary/my"),
	))
	defer span.End()

	userID, ok := h.userID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	itineraries, err := h.service.List(ctx, userID)
	if err != nil {
		h.writeError(w, r, span, err)
		return
	}
	if itineraries == nil {
		itineraries = []types.Itinerary{}
	}

	span.SetAttributes(attribute.Int("itinerary.count", len(itineraries)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	api.WriteJSONResponse(w, r, http.StatusOK, itineraries)
}

// GetByID handles GET /itinerary/{id}, returning the enriched view.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetByID", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute("/itinerary/{id}"),
	))
	defer span.End()

	userID, ok := h.userID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid itinerary ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID format")
		return
	}

	enriched, err := h.service.GetEnriched(ctx, userID, id)
	if err != nil {
		h.writeError(w, r, span, err)
		return
	}

	span.SetStatus(codes.Ok, "Itinerary fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, enriched)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := appMiddleware.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "User ID not found in context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid user ID in context", slog.String("userID", userIDStr))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid user ID in context")
		return uuid.Nil, false
	}
	return userID, true
}

// writeError maps pipeline errors onto HTTP statuses. Parse failures are
// the caller's input problem, gateway faults are upstream problems.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	switch {
	case errors.Is(err, types.ErrValidation):
		span.SetStatus(codes.Error, "Validation failed")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrParseFailure):
		span.SetStatus(codes.Error, "Parse failure")
		api.ErrorResponse(w, r, http.StatusUnprocessableEntity, "Could not extract an itinerary from the provided text")
	case errors.Is(err, types.ErrNotFound):
		span.SetStatus(codes.Error, "Not found")
		api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
	default:
		span.SetStatus(codes.Error, "Internal error")
		h.logger.ErrorContext(r.Context(), "Itinerary request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
