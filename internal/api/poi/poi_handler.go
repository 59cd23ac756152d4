package poi

import (
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	api "github.com/mjRam27/Explorix/internal/api"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Handler struct {
	logger *slog.Logger
	repo   Repository
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		repo:   repo,
	}
}

func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

// ListPOIs handles GET /pois?city=&category=&q=
func (h *Handler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("POIHandler").Start(r.Context(), "ListPOIs")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ListPOIs"))
	limit := parseLimit(r)

	city := r.URL.Query().Get("city")
	category := r.URL.Query().Get("category")
	q := r.URL.Query().Get("q")

	var err error
	var places interface{}
	switch {
	case category != "" && city != "":
		places, err = h.repo.SearchByCategoryAndRegion(ctx, category, city, limit)
	case city != "":
		places, err = h.repo.SearchByCity(ctx, city, limit)
	case q != "":
		places, err = h.repo.SearchByText(ctx, q, limit)
	default:
		api.ErrorResponse(w, r, http.StatusBadRequest, "Provide a city, category or q query parameter")
		return
	}

	if err != nil {
		l.ErrorContext(ctx, "POI search failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI search failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to search POIs")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, places)
}

// ListNearbyPOIs handles GET /pois/nearby?lat=&lng=&radius_km=
func (h *Handler) ListNearbyPOIs(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("POIHandler").Start(r.Context(), "ListNearbyPOIs")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ListNearbyPOIs"))

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}

	radiusKm := 5.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			radiusKm = v
		}
	}

	span.SetAttributes(
		attribute.Float64("search.lat", lat),
		attribute.Float64("search.lng", lng),
		attribute.Float64("search.radius_km", radiusKm),
	)

	places, err := h.repo.SearchNear(ctx, lat, lng, radiusKm, parseLimit(r))
	if err != nil {
		l.ErrorContext(ctx, "Nearby POI search failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Nearby POI search failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to search nearby POIs")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, places)
}
