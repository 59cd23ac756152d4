package types

// Place is one row of the read-only poi catalog. The catalog is owned by an
// external ingestion process; this service never writes it.
type Place struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	NormalizedTitle string   `json:"normalized_title,omitempty"`
	Category        string   `json:"category,omitempty"`
	PoiType         string   `json:"poi_type,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewsCount    *int     `json:"reviews_count,omitempty"`
	Street          string   `json:"street,omitempty"`
	City            string   `json:"city,omitempty"`
	State           string   `json:"state,omitempty"`
	CountryCode     string   `json:"country_code,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Website         string   `json:"website,omitempty"`
	GoogleMapsURL   string   `json:"google_maps_url,omitempty"`

	// DistanceKm is populated only by radius searches.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}
