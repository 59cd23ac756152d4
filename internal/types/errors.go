package types

import "errors"

// Distinguishable error kinds for the itinerary pipeline. Handlers map
// these to specific HTTP statuses so callers can render actionable
// messages instead of a generic 500.
var (
	// ErrParseFailure means no itinerary could be extracted from the text.
	// Nothing is persisted on this path.
	ErrParseFailure = errors.New("could not build itinerary from that description")

	// ErrValidation covers malformed drafts (e.g. missing destination),
	// rejected before any store write.
	ErrValidation = errors.New("invalid itinerary draft")

	// ErrGatewayTimeout is returned when the language model does not answer
	// within the configured deadline.
	ErrGatewayTimeout = errors.New("language model did not respond in time")

	// ErrGatewayEmpty is returned when the language model answered with an
	// empty body even after the single retry.
	ErrGatewayEmpty = errors.New("language model returned an empty response")

	ErrNotFound = errors.New("not found")
)
