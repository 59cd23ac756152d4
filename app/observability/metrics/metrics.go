package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the pipeline's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal          metric.Int64Counter
	ChatTurnDurationSeconds metric.Float64Histogram
	GroundingEmptyTotal     metric.Int64Counter
	GatewayRetriesTotal     metric.Int64Counter
	GatewayTimeoutsTotal    metric.Int64Counter
	ParseFailuresTotal      metric.Int64Counter
	ItinerariesSavedTotal   metric.Int64Counter
	DbQueryDurationSeconds  metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("Explorix")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of chat turns handled, by intent"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.ChatTurnDurationSeconds, err = meter.Float64Histogram(
			"chat_turn_duration_seconds",
			metric.WithDescription("End-to-end duration of a chat turn in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turn_duration_seconds: %v", err)
		}

		m.GroundingEmptyTotal, err = meter.Int64Counter(
			"grounding_empty_total",
			metric.WithDescription("Chat turns where no POI grounding could be built"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create grounding_empty_total: %v", err)
		}

		m.GatewayRetriesTotal, err = meter.Int64Counter(
			"gateway_retries_total",
			metric.WithDescription("Language model calls retried after an empty response"),
			metric.WithUnit("{retry}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_retries_total: %v", err)
		}

		m.GatewayTimeoutsTotal, err = meter.Int64Counter(
			"gateway_timeouts_total",
			metric.WithDescription("Language model calls that exceeded the deadline"),
			metric.WithUnit("{timeout}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_timeouts_total: %v", err)
		}

		m.ParseFailuresTotal, err = meter.Int64Counter(
			"itinerary_parse_failures_total",
			metric.WithDescription("Itinerary text parses that produced no plan"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_parse_failures_total: %v", err)
		}

		m.ItinerariesSavedTotal, err = meter.Int64Counter(
			"itineraries_saved_total",
			metric.WithDescription("Itineraries persisted successfully"),
			metric.WithUnit("{itinerary}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itineraries_saved_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance. Panics if
// InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
