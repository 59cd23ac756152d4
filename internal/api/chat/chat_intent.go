package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mjRam27/Explorix/internal/types"
)

const (
	defaultTripDays = 3

	defaultRadiusKm = 2.0
	minRadiusKm     = 0.5
	maxRadiusKm     = 20.0
)

// DefaultGazetteer lists the cities the catalog currently covers. City
// detection is a substring scan over this list, not NER.
var DefaultGazetteer = []string{"Berlin", "Munich", "Hamburg", "Frankfurt"}

// IntentKeywords holds the phrase lists that drive intent classification.
// Matching is case-insensitive substring containment.
type IntentKeywords struct {
	Itinerary []string
	POISearch []string
}

func DefaultIntentKeywords() IntentKeywords {
	return IntentKeywords{
		Itinerary: []string{
			"itinerary", "plan my trip", "trip plan", "day plan",
			"plan a trip", "days in", "day trip", "schedule",
		},
		POISearch: []string{
			"restaurant", "museum", "park", "bar", "cafe", "coffee",
			"hotel", "attraction", "things to do", "places to visit",
			"what to see", "where to eat", "nearby", "near me", "around me",
			"close to me",
		},
	}
}

var (
	dayCountRe = regexp.MustCompile(`(?i)(\d+)\s*day`)
	radiusRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*km`)
)

// DetectIntent classifies a message by keyword containment. Itinerary
// phrasing wins over POI phrasing when both match, since a trip-planning
// request usually names the places it wants covered.
func DetectIntent(message string, kw IntentKeywords) types.Intent {
	lower := strings.ToLower(message)
	for _, k := range kw.Itinerary {
		if strings.Contains(lower, k) {
			return types.IntentItineraryRequest
		}
	}
	for _, k := range kw.POISearch {
		if strings.Contains(lower, k) {
			return types.IntentPOISearch
		}
	}
	return types.IntentGeneralChat
}

// ExtractDayCount reads an explicit "<N> day" phrase, defaulting to a
// three-day trip when the message names none.
func ExtractDayCount(message string) int {
	m := dayCountRe.FindStringSubmatch(message)
	if m == nil {
		return defaultTripDays
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return defaultTripDays
	}
	return n
}

// ExtractCity returns the first gazetteer city mentioned in the message,
// or "" when none appears.
func ExtractCity(message string, gazetteer []string) string {
	lower := strings.ToLower(message)
	for _, city := range gazetteer {
		if strings.Contains(lower, strings.ToLower(city)) {
			return city
		}
	}
	return ""
}

// ExtractRadiusKm reads a "<N> km" phrase and clamps it to a sane search
// window; without one the default neighborhood radius applies.
func ExtractRadiusKm(message string) float64 {
	m := radiusRe.FindStringSubmatch(message)
	if m == nil {
		return defaultRadiusKm
	}
	r, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return defaultRadiusKm
	}
	if r < minRadiusKm {
		return minRadiusKm
	}
	if r > maxRadiusKm {
		return maxRadiusKm
	}
	return r
}
