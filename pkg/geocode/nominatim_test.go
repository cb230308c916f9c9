package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rahulm/quickserve/config"
)

const nominatimFixture = `[
	{
		"display_name": "Connaught Place, New Delhi, Delhi, 110001, India",
		"lat": "28.6315",
		"lon": "77.2167",
		"address": {"postcode": "110001", "city": "New Delhi"}
	},
	{
		"display_name": "Connaught Circus, New Delhi, Delhi, India",
		"lat": "28.6330",
		"lon": "77.2190",
		"address": {"town": "New Delhi"}
	},
	{
		"display_name": "bad coordinates",
		"lat": "not-a-number",
		"lon": "77.0",
		"address": {}
	}
]`

func testClient(t *testing.T, handler http.HandlerFunc) *NominatimClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatimClient(config.GeocodeConfig{
		BaseURL:   srv.URL,
		UserAgent: "quickserve-test",
		Timeout:   2 * time.Second,
	})
}

func TestNominatimSearch(t *testing.T) {
	var gotQuery, gotAgent string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(nominatimFixture))
	})

	results, err := client.Search(context.Background(), "Connaught Place", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotQuery != "Connaught Place" {
		t.Errorf("query = %q, want %q", gotQuery, "Connaught Place")
	}
	if gotAgent != "quickserve-test" {
		t.Errorf("User-Agent = %q, want %q", gotAgent, "quickserve-test")
	}

	// The unparsable third hit is dropped.
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Latitude != 28.6315 || results[0].Longitude != 77.2167 {
		t.Errorf("results[0] coords = %v,%v", results[0].Latitude, results[0].Longitude)
	}
	if results[0].Postcode == nil || *results[0].Postcode != "110001" {
		t.Errorf("results[0].Postcode = %v, want 110001", results[0].Postcode)
	}
	if results[0].City == nil || *results[0].City != "New Delhi" {
		t.Errorf("results[0].City = %v, want New Delhi", results[0].City)
	}
	// Town fills in when city is absent.
	if results[1].City == nil || *results[1].City != "New Delhi" {
		t.Errorf("results[1].City = %v, want New Delhi", results[1].City)
	}
}

func TestNominatimResolve_NoMatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	got, err := client.Resolve(context.Background(), "nowhere at all")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != nil {
		t.Errorf("Resolve() = %+v, want nil for no match", got)
	}
}

func TestNominatimResolve_TakesFirstHit(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nominatimFixture))
	})

	got, err := client.Resolve(context.Background(), "Connaught Place")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == nil || got.Latitude != 28.6315 {
		t.Fatalf("Resolve() = %+v, want the first hit", got)
	}
}

func TestNominatimSearch_ServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := client.Search(context.Background(), "anything", 5); err == nil {
		t.Fatal("Search() error = nil, want non-nil on 503")
	}
}
