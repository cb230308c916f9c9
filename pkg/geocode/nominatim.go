package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rahulm/quickserve/config"
)

// NominatimClient calls the Nominatim search API over HTTP.
//
// Nominatim's usage policy requires a descriptive User-Agent; the value comes
// from config so deployments identify themselves.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimClient creates a Nominatim client from config.
func NewNominatimClient(cfg config.GeocodeConfig) *NominatimClient {
	return &NominatimClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// nominatimPlace is the wire shape of one search hit. Coordinates arrive as
// strings.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		Postcode string `json:"postcode"`
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
	} `json:"address"`
}

// Resolve returns the best match for the address, or (nil, nil) on no match.
func (c *NominatimClient) Resolve(ctx context.Context, address string) (*Result, error) {
	results, err := c.Search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// Search returns up to limit candidate locations for the query.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: search %q: status %d", query, resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}

	results := make([]Result, 0, len(places))
	for _, p := range places {
		lat, latErr := strconv.ParseFloat(p.Lat, 64)
		lon, lonErr := strconv.ParseFloat(p.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		r := Result{
			DisplayName: p.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		}
		if p.Address.Postcode != "" {
			r.Postcode = strPtr(p.Address.Postcode)
		}
		if city := firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village); city != "" {
			r.City = strPtr(city)
		}
		results = append(results, r)
	}
	return results, nil
}

func strPtr(s string) *string { return &s }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ interface {
	Geocoder
	Searcher
} = (*NominatimClient)(nil)
