// Package geocode resolves free-text addresses to coordinates via the
// OpenStreetMap Nominatim API, with a Redis read-through cache in front.
//
// Geocoding is best-effort everywhere it is used: a nil result with a nil
// error means "no match", and callers are expected to proceed with null
// coordinates rather than fail the operation.
package geocode

import "context"

// Result is one resolved location.
type Result struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Postcode    *string `json:"postcode,omitempty"`
	City        *string `json:"city,omitempty"`
}

// Geocoder resolves an address to coordinates. Implementations return
// (nil, nil) when the address has no match; errors are reserved for
// transport failures.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Result, error)
}

// Searcher returns multiple candidate locations for a query. Used by the
// location-search endpoint; dispatch only needs Geocoder.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
