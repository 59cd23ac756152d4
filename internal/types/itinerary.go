package types

import (
	"time"

	"github.com/google/uuid"
)

// Slot buckets of a draft day, walked in this fixed order when the draft is
// flattened for persistence.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

var SlotOrder = []string{SlotMorning, SlotAfternoon, SlotEvening}

// SlotPlace is a POI reference inside a draft slot.
type SlotPlace struct {
	PlaceID  int64  `json:"place_id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

type DayDraft struct {
	Day   int                    `json:"day"`
	Slots map[string][]SlotPlace `json:"slots"`
}

// ItineraryDraft is the UI/model-facing slot-bucketed shape. It is held only
// in the request/response cycle and never stored as-is.
type ItineraryDraft struct {
	Destination string     `json:"destination,omitempty"`
	City        string     `json:"city,omitempty"`
	Days        []DayDraft `json:"days"`
	Editable    bool       `json:"editable"`
}

type NormalizedPlace struct {
	PlaceID int64 `json:"place_id"`
	Order   int   `json:"order"`
}

type NormalizedDay struct {
	Day    int               `json:"day"`
	Date   string            `json:"date"` // YYYY-MM-DD
	Places []NormalizedPlace `json:"places"`
}

// NormalizedItinerary is the persisted day/order-indexed shape. Day numbers
// are contiguous from 1, orders are contiguous from 1 within a day, and the
// date advances by one calendar day per day.
type NormalizedItinerary struct {
	Destination string          `json:"destination"`
	Title       string          `json:"title"`
	Days        []NormalizedDay `json:"days"`
}

// Itinerary is a stored itinerary record. Days is the JSONB source of
// truth; the itinerary_places table is a derived, rebuildable projection.
type Itinerary struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Title        string          `json:"title"`
	Destination  string          `json:"destination"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	DurationDays int             `json:"duration_days"`
	Days         []NormalizedDay `json:"days"`
	AIGenerated  bool            `json:"ai_generated"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EnrichedPlace is a day entry joined against the POI catalog at read time.
type EnrichedPlace struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Category      string   `json:"category,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewsCount  *int     `json:"reviews_count,omitempty"`
	City          string   `json:"city,omitempty"`
	CountryCode   string   `json:"country_code,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	GoogleMapsURL string   `json:"google_maps_url,omitempty"`
	Order         int      `json:"order"`
}

type EnrichedDay struct {
	Day    int             `json:"day"`
	Date   string          `json:"date"`
	Places []EnrichedPlace `json:"places"`
}

type EnrichedItinerary struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Destination  string        `json:"destination"`
	DurationDays int           `json:"duration_days"`
	Days         []EnrichedDay `json:"days"`
}

type SaveFromTextRequest struct {
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	TextPlan    string `json:"text_plan"`
}

type SaveFromDraftRequest struct {
	Draft ItineraryDraft `json:"draft"`
}
