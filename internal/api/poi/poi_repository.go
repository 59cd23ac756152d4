package poi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the read-only query interface over the POI catalog. All
// methods return deterministically ordered results with a hard cap; the
// catalog itself is owned by an external ingestion process.
type Repository interface {
	SearchByText(ctx context.Context, keywords string, limit int) ([]types.Place, error)
	SearchByCity(ctx context.Context, city string, limit int) ([]types.Place, error)
	SearchNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]types.Place, error)
	SearchByCategoryAndRegion(ctx context.Context, keywords, region string, limit int) ([]types.Place, error)
	GetPlacesByIDs(ctx context.Context, ids []int64) (map[int64]types.Place, error)
}

// Queryer is the slice of pgxpool.Pool the repository actually needs.
// Tests substitute a pgxmock pool through it.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Queryer = (*pgxpool.Pool)(nil)

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool Queryer
	cache  *cache.Cache
}

func NewRepository(pgpool Queryer, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		cache:  cache.New(10*time.Minute, 30*time.Minute),
	}
}

// observeQuery feeds the db latency histogram, labeled by operation.
func observeQuery(ctx context.Context, op string, start time.Time) {
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("db.operation", op)))
}

const placeColumns = `
        id, title, COALESCE(normalized_title, ''), COALESCE(category, ''),
        COALESCE(poi_type, ''), rating, reviews_count, COALESCE(street, ''),
        COALESCE(city, ''), COALESCE(state, ''), COALESCE(country_code, ''),
        latitude, longitude, COALESCE(website, ''), COALESCE(google_maps_url, '')`

func scanPlace(row pgx.Rows, withDistance bool) (types.Place, error) {
	var p types.Place
	dest := []interface{}{
		&p.ID, &p.Title, &p.NormalizedTitle, &p.Category, &p.PoiType,
		&p.Rating, &p.ReviewsCount, &p.Street, &p.City, &p.State,
		&p.CountryCode, &p.Latitude, &p.Longitude, &p.Website, &p.GoogleMapsURL,
	}
	if withDistance {
		dest = append(dest, &p.DistanceKm)
	}
	if err := row.Scan(dest...); err != nil {
		return types.Place{}, fmt.Errorf("failed to scan POI row: %w", err)
	}
	return p, nil
}

func (r *RepositoryImpl) collectPlaces(rows pgx.Rows, withDistance bool) ([]types.Place, error) {
	defer rows.Close()
	var places []types.Place
	for rows.Next() {
		p, err := scanPlace(rows, withDistance)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating POI rows: %w", err)
	}
	return places, nil
}

// SearchByText matches whitespace-separated keywords against title,
// normalized title, category and city, best rated first.
func (r *RepositoryImpl) SearchByText(ctx context.Context, keywords string, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("POIRepo").Start(ctx, "SearchByText", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "poi"),
		attribute.String("search.keywords", keywords),
	))
	defer span.End()

	terms := strings.Fields(keywords)
	if len(terms) == 0 {
		return nil, nil
	}

	var conds []string
	args := make([]interface{}, 0, len(terms)+1)
	for i, t := range terms {
		args = append(args, "%"+t+"%")
		n := i + 1
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE $%d OR normalized_title ILIKE $%d OR category ILIKE $%d OR city ILIKE $%d)",
			n, n, n, n))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
        SELECT %s
        FROM poi
        WHERE %s
        ORDER BY rating DESC NULLS LAST, id
        LIMIT $%d`, placeColumns, strings.Join(conds, " OR "), len(args))

	defer observeQuery(ctx, "poi.search_by_text", time.Now())
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query POIs by text")
		return nil, fmt.Errorf("failed to query POIs by text: %w", err)
	}
	places, err := r.collectPlaces(rows, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pois.count", len(places)))
	span.SetStatus(codes.Ok, "POIs fetched")
	return places, nil
}

// SearchByCity returns the best-rated POIs of a city. City grounding is the
// hot path of the chat pipeline, so results are cached briefly.
func (r *RepositoryImpl) SearchByCity(ctx context.Context, city string, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("POIRepo").Start(ctx, "SearchByCity", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "poi"),
		attribute.String("search.city", city),
		attribute.Int("search.limit", limit),
	))
	defer span.End()

	cacheKey := fmt.Sprintf("poi:city:%s:%d", strings.ToLower(city), limit)
	if cached, found := r.cache.Get(cacheKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.Place), nil
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM poi
        WHERE city ILIKE $1
        ORDER BY rating DESC NULLS LAST, id
        LIMIT $2`, placeColumns)

	defer observeQuery(ctx, "poi.search_by_city", time.Now())
	rows, err := r.pgpool.Query(ctx, query, "%"+city+"%", limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query POIs by city")
		return nil, fmt.Errorf("failed to query POIs by city: %w", err)
	}
	places, err := r.collectPlaces(rows, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.cache.Set(cacheKey, places, cache.DefaultExpiration)
	span.SetAttributes(attribute.Int("pois.count", len(places)))
	span.SetStatus(codes.Ok, "POIs fetched")
	return places, nil
}

// SearchNear returns POIs within radiusKm of the point, nearest first,
// with DistanceKm populated.
func (r *RepositoryImpl) SearchNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("POIRepo").Start(ctx, "SearchNear", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "poi"),
		attribute.Float64("search.lat", lat),
		attribute.Float64("search.lng", lng),
		attribute.Float64("search.radius_km", radiusKm),
	))
	defer span.End()

	query := fmt.Sprintf(`
        SELECT %s,
            ROUND((ST_DistanceSphere(
                ST_MakePoint(longitude, latitude),
                ST_MakePoint($2, $1)
            ) / 1000.0)::numeric, 2)::float8 AS distance_km
        FROM poi
        WHERE latitude IS NOT NULL
          AND longitude IS NOT NULL
          AND ST_DistanceSphere(
                ST_MakePoint(longitude, latitude),
                ST_MakePoint($2, $1)
              ) <= $3
        ORDER BY distance_km, id
        LIMIT $4`, placeColumns)

	defer observeQuery(ctx, "poi.search_near", time.Now())
	rows, err := r.pgpool.Query(ctx, query, lat, lng, radiusKm*1000, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query nearby POIs")
		return nil, fmt.Errorf("failed to query nearby POIs: %w", err)
	}
	places, err := r.collectPlaces(rows, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pois.count", len(places)))
	span.SetStatus(codes.Ok, "POIs fetched")
	return places, nil
}

// SearchByCategoryAndRegion filters by category keywords within a city or
// state, best rated first.
func (r *RepositoryImpl) SearchByCategoryAndRegion(ctx context.Context, keywords, region string, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("POIRepo").Start(ctx, "SearchByCategoryAndRegion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "poi"),
		attribute.String("search.keywords", keywords),
		attribute.String("search.region", region),
	))
	defer span.End()

	query := fmt.Sprintf(`
        SELECT %s
        FROM poi
        WHERE category ILIKE $1
          AND (city ILIKE $2 OR state ILIKE $2)
        ORDER BY rating DESC NULLS LAST, id
        LIMIT $3`, placeColumns)

	defer observeQuery(ctx, "poi.search_by_category_region", time.Now())
	rows, err := r.pgpool.Query(ctx, query, "%"+keywords+"%", "%"+region+"%", limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query POIs by category and region")
		return nil, fmt.Errorf("failed to query POIs by category and region: %w", err)
	}
	places, err := r.collectPlaces(rows, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pois.count", len(places)))
	span.SetStatus(codes.Ok, "POIs fetched")
	return places, nil
}

// GetPlacesByIDs resolves place ids for itinerary enrichment. Missing ids
// are simply absent from the map; callers decide how to degrade.
func (r *RepositoryImpl) GetPlacesByIDs(ctx context.Context, ids []int64) (map[int64]types.Place, error) {
	ctx, span := otel.Tracer("POIRepo").Start(ctx, "GetPlacesByIDs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "poi"),
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]types.Place{}, nil
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM poi
        WHERE id = ANY($1)`, placeColumns)

	defer observeQuery(ctx, "poi.get_by_ids", time.Now())
	rows, err := r.pgpool.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query POIs by ids")
		return nil, fmt.Errorf("failed to query POIs by ids: %w", err)
	}
	places, err := r.collectPlaces(rows, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := make(map[int64]types.Place, len(places))
	for _, p := range places {
		result[p.ID] = p
	}
	span.SetStatus(codes.Ok, "POIs fetched")
	return result, nil
}
