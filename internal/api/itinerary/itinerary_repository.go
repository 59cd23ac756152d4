package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/internal/types"
)

// Repository persists itineraries. The days JSON document is the source of
// truth; itinerary_places rows are a queryable index derived from it, and
// both are written in one transaction.
type Repository interface {
	SaveItinerary(ctx context.Context, itinerary *types.Itinerary) (uuid.UUID, error)
	GetItinerary(ctx context.Context, id, userID uuid.UUID) (*types.Itinerary, error)
	GetItineraries(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error)
}

var _ Repository = (*RepositoryImpl)(nil)

// observeQuery feeds the db latency histogram, labeled by operation.
func observeQuery(ctx context.Context, op string, start time.Time) {
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("db.operation", op)))
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewRepository(pgxpool *pgxpool.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

// SaveItinerary stores the itinerary header with its days document and
// mirrors every day/place pair into itinerary_places. Either everything
// lands or nothing does.
func (r *RepositoryImpl) SaveItinerary(ctx context.Context, itinerary *types.Itinerary) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "SaveItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SaveItinerary"), slog.String("userID", itinerary.UserID.String()))

	daysJSON, err := json.Marshal(itinerary.Days)
	if err != nil {
		l.ErrorContext(ctx, "Failed to marshal itinerary days", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Marshal failed")
		return uuid.Nil, fmt.Errorf("failed to marshal itinerary days: %w", err)
	}

	defer observeQuery(ctx, "itineraries.save", time.Now())
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction failed")
		return uuid.Nil, fmt.Errorf("database error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
        INSERT INTO itineraries (user_id, destination, title, start_date, end_date, duration_days, days, ai_generated)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id`,
		itinerary.UserID, itinerary.Destination, itinerary.Title,
		itinerary.StartDate, itinerary.EndDate, itinerary.DurationDays,
		daysJSON, itinerary.AIGenerated,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return uuid.Nil, fmt.Errorf("database error inserting itinerary: %w", err)
	}

	batch := &pgx.Batch{}
	for _, day := range itinerary.Days {
		for _, place := range day.Places {
			batch.Queue(`
                INSERT INTO itinerary_places (itinerary_id, day_number, order_in_day, place_id)
                VALUES ($1, $2, $3, $4)`,
				id, day.Day, place.Order, place.PlaceID)
		}
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				l.ErrorContext(ctx, "Failed to insert itinerary place", slog.Any("error", err))
				span.RecordError(err)
				span.SetStatus(codes.Error, "Batch insert failed")
				return uuid.Nil, fmt.Errorf("database error inserting itinerary places: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Batch close failed")
			return uuid.Nil, fmt.Errorf("database error closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Commit failed")
		return uuid.Nil, fmt.Errorf("database error committing transaction: %w", err)
	}

	l.InfoContext(ctx, "Itinerary saved", slog.String("itineraryID", id.String()))
	span.SetAttributes(attribute.String("itinerary.id", id.String()))
	span.SetStatus(codes.Ok, "Itinerary saved")
	return id, nil
}

// GetItinerary fetches one itinerary scoped to its owner. A foreign id is
// indistinguishable from a missing one.
func (r *RepositoryImpl) GetItinerary(ctx context.Context, id, userID uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "GetItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.id", id.String()),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	defer observeQuery(ctx, "itineraries.get", time.Now())
	var it types.Itinerary
	var daysJSON []byte
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, user_id, destination, title, start_date, end_date, duration_days, days, ai_generated, created_at
        FROM itineraries
        WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&it.ID, &it.UserID, &it.Destination, &it.Title, &it.StartDate, &it.EndDate,
		&it.DurationDays, &daysJSON, &it.AIGenerated, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "Itinerary not found")
			return nil, fmt.Errorf("itinerary %s: %w", id, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("database error fetching itinerary: %w", err)
	}

	if err := json.Unmarshal(daysJSON, &it.Days); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unmarshal failed")
		return nil, fmt.Errorf("failed to unmarshal itinerary days: %w", err)
	}

	span.SetStatus(codes.Ok, "Itinerary fetched")
	return &it, nil
}

func (r *RepositoryImpl) GetItineraries(ctx context.Context, userID uuid.UUID) ([]types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "GetItineraries", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	defer observeQuery(ctx, "itineraries.list", time.Now())
	rows, err := r.pgpool.Query(ctx, `
        SELECT id, user_id, destination, title, start_date, end_date, duration_days, days, ai_generated, created_at
        FROM itineraries
        WHERE user_id = $1
        ORDER BY created_at DESC`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("database error fetching itineraries: %w", err)
	}
	defer rows.Close()

	var itineraries []types.Itinerary
	for rows.Next() {
		var it types.Itinerary
		var daysJSON []byte
		if err := rows.Scan(&it.ID, &it.UserID, &it.Destination, &it.Title, &it.StartDate, &it.EndDate,
			&it.DurationDays, &daysJSON, &it.AIGenerated, &it.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Scan failed")
			return nil, fmt.Errorf("database error scanning itinerary: %w", err)
		}
		if err := json.Unmarshal(daysJSON, &it.Days); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unmarshal failed")
			return nil, fmt.Errorf("failed to unmarshal itinerary days: %w", err)
		}
		itineraries = append(itineraries, it)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rows iteration failed")
		return nil, fmt.Errorf("database error iterating itineraries: %w", err)
	}

	span.SetAttributes(attribute.Int("itinerary.count", len(itineraries)))
	span.SetStatus(codes.Ok, "Itineraries fetched")
	return itineraries, nil
}
