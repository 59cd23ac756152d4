package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/internal/api/poi"
	"github.com/mjRam27/Explorix/internal/types"
)

// Service converts free text and drafts into stored itineraries and serves
// them back enriched with live POI details.
type Service interface {
	SaveFromText(ctx context.Context, userID uuid.UUID, req types.SaveFromTextRequest) (uuid.UUID, error)
	SaveFromDraft(ctx context.Context, userID uuid.UUID, draft types.ItineraryDraft) (uuid.UUID, error)
	GetEnriched(ctx context.Context, userID, id uuid.UUID) (*types.EnrichedItinerary, error)
	List(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger         *slog.Logger
	repo           Repository
	poiRepo        poi.Repository
	candidateLimit int
}

func NewService(repo Repository, poiRepo poi.Repository, candidateLimit int, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:         logger,
		repo:           repo,
		poiRepo:        poiRepo,
		candidateLimit: candidateLimit,
	}
}

// SaveFromText parses a free-text plan against the destination's POI
// catalog and persists the result. Only places found in the catalog make
// it into the stored plan; a text that yields no plan at all is a parse
// failure, not an empty itinerary.
func (s *ServiceImpl) SaveFromText(ctx context.Context, userID uuid.UUID, req types.SaveFromTextRequest) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SaveFromText")
	defer span.End()

	l := s.logger.With(slog.String("method", "SaveFromText"), slog.String("userID", userID.String()))

	if req.Destination == "" || req.TextPlan == "" {
		return uuid.Nil, fmt.Errorf("destination and text_plan are required: %w", types.ErrValidation)
	}
	startDate, err := parseStartDate(req.StartDate)
	if err != nil {
		return uuid.Nil, err
	}

	candidates, err := s.poiRepo.SearchByCity(ctx, req.Destination, s.candidateLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Candidate lookup failed")
		return uuid.Nil, fmt.Errorf("failed to load candidate places for %q: %w", req.Destination, err)
	}

	days := ParseItineraryText(req.TextPlan, candidates, startDate)
	if len(days) == 0 {
		metrics.Get().ParseFailuresTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Text plan produced no days", slog.String("destination", req.Destination))
		span.SetStatus(codes.Error, "Parse failure")
		return uuid.Nil, fmt.Errorf("could not extract a day plan from text: %w", types.ErrParseFailure)
	}

	id, err := s.save(ctx, userID, types.NormalizedItinerary{
		Destination: req.Destination,
		Title:       req.Destination + " Trip",
		Days:        days,
	}, startDate, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		return uuid.Nil, err
	}

	span.SetAttributes(attribute.String("itinerary.id", id.String()), attribute.Int("itinerary.days", len(days)))
	span.SetStatus(codes.Ok, "Itinerary saved from text")
	return id, nil
}

// SaveFromDraft flattens a slot-bucketed draft and persists it. The draft
// is treated as user-edited, so it is stored even if some referenced
// places no longer resolve; those are dropped at read time.
func (s *ServiceImpl) SaveFromDraft(ctx context.Context, userID uuid.UUID, draft types.ItineraryDraft) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SaveFromDraft")
	defer span.End()

	if len(draft.Days) == 0 {
		return uuid.Nil, fmt.Errorf("draft has no days: %w", types.ErrValidation)
	}

	startDate := time.Now().UTC().Truncate(24 * time.Hour)
	normalized, err := NormalizeDraft(draft, startDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Draft normalization failed")
		return uuid.Nil, fmt.Errorf("invalid draft: %w", err)
	}

	id, err := s.save(ctx, userID, normalized, startDate, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		return uuid.Nil, err
	}

	span.SetAttributes(attribute.String("itinerary.id", id.String()))
	span.SetStatus(codes.Ok, "Itinerary saved from draft")
	return id, nil
}

func (s *ServiceImpl) save(ctx context.Context, userID uuid.UUID, normalized types.NormalizedItinerary, startDate time.Time, aiGenerated bool) (uuid.UUID, error) {
	duration := len(normalized.Days)
	if duration == 0 {
		return uuid.Nil, fmt.Errorf("itinerary has no days: %w", types.ErrValidation)
	}

	id, err := s.repo.SaveItinerary(ctx, &types.Itinerary{
		UserID:       userID,
		Title:        normalized.Title,
		Destination:  normalized.Destination,
		StartDate:    startDate,
		EndDate:      startDate.AddDate(0, 0, duration-1),
		DurationDays: duration,
		Days:         normalized.Days,
		AIGenerated:  aiGenerated,
	})
	if err != nil {
		return uuid.Nil, err
	}
	metrics.Get().ItinerariesSavedTotal.Add(ctx, 1)
	return id, nil
}

// GetEnriched fetches one of the caller's itineraries and joins each
// place reference against the POI catalog. The read is scoped to the
// owner, so a foreign id is reported as not found. References that no
// longer resolve are dropped rather than surfaced as holes, and the
// remaining places keep their stored order.
func (s *ServiceImpl) GetEnriched(ctx context.Context, userID, id uuid.UUID) (*types.EnrichedItinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetEnriched", trace.WithAttributes(
		attribute.String("itinerary.id", id.String()),
	))
	defer span.End()

	it, err := s.repo.GetItinerary(ctx, id, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return nil, err
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, day := range it.Days {
		for _, p := range day.Places {
			if !seen[p.PlaceID] {
				seen[p.PlaceID] = true
				ids = append(ids, p.PlaceID)
			}
		}
	}

	places := map[int64]types.Place{}
	if len(ids) > 0 {
		places, err = s.poiRepo.GetPlacesByIDs(ctx, ids)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Place lookup failed")
			return nil, fmt.Errorf("failed to resolve itinerary places: %w", err)
		}
	}

	enriched := &types.EnrichedItinerary{
		ID:           it.ID,
		Title:        it.Title,
		Destination:  it.Destination,
		DurationDays: it.DurationDays,
		Days:         make([]types.EnrichedDay, 0, len(it.Days)),
	}
	dropped := 0
	for _, day := range it.Days {
		eday := types.EnrichedDay{
			Day:    day.Day,
			Date:   day.Date,
			Places: make([]types.EnrichedPlace, 0, len(day.Places)),
		}
		for _, ref := range day.Places {
			place, ok := places[ref.PlaceID]
			if !ok {
				dropped++
				continue
			}
			eday.Places = append(eday.Places, types.EnrichedPlace{
				ID:            place.ID,
				Name:          place.Title,
				Category:      place.Category,
				Rating:        place.Rating,
				ReviewsCount:  place.ReviewsCount,
				City:          place.City,
				CountryCode:   place.CountryCode,
				Latitude:      place.Latitude,
				Longitude:     place.Longitude,
				GoogleMapsURL: place.GoogleMapsURL,
				Order:         ref.Order,
			})
		}
		enriched.Days = append(enriched.Days, eday)
	}
	if dropped > 0 {
		s.logger.WarnContext(ctx, "Dropped unresolvable itinerary places",
			slog.String("itineraryID", id.String()), slog.Int("dropped", dropped))
	}

	span.SetStatus(codes.Ok, "Itinerary enriched")
	return enriched, nil
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "List")
	defer span.End()

	itineraries, err := s.repo.GetItineraries(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("itinerary.count", len(itineraries)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	return itineraries, nil
}

// parseStartDate reads a YYYY-MM-DD date, defaulting to today in UTC when
// empty.
func parseStartDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", s, types.ErrValidation)
	}
	return t, nil
}
