package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
func ptrS(v string) *string   { return &v }

func dispatchCfg() config.DispatchConfig {
	return config.DispatchConfig{
		TopN:                  3,
		MaxDistanceKm:         20,
		LocationlessFullBonus: true,
	}
}

// ─── Score ──────────────────────────────────────────────────

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreInput
		want float64
	}{
		{
			// 25 base + 12 default rating + 30 service match
			name: "bare provider",
			in:   ScoreInput{MaxDistanceKm: 20},
			want: 67,
		},
		{
			// 25 + 4*4.5 + 30 + (20-5) + 10 + 8 - 2*2 = 102
			name: "strong nearby candidate",
			in: ScoreInput{
				Rating:          ptrF(4.5),
				ExperienceYears: ptrI(8),
				ActiveBookings:  2,
				PincodeMatch:    true,
				DistanceKm:      ptrF(5),
				MaxDistanceKm:   20,
			},
			want: 102,
		},
		{
			// Distance at or beyond the budget earns nothing.
			name: "out of range distance",
			in:   ScoreInput{DistanceKm: ptrF(25), MaxDistanceKm: 20},
			want: 67,
		},
		{
			// Effective distance zero earns the full bonus.
			name: "zero distance",
			in:   ScoreInput{DistanceKm: ptrF(0), MaxDistanceKm: 20},
			want: 87,
		},
		{
			// 2 per active booking, capped at 15 even for 20 bookings.
			name: "workload penalty capped",
			in:   ScoreInput{ActiveBookings: 20, MaxDistanceKm: 20},
			want: 52,
		},
		{
			// +1 per year, capped at 10.
			name: "experience capped",
			in:   ScoreInput{ExperienceYears: ptrI(25), MaxDistanceKm: 20},
			want: 77,
		},
		{
			name: "rating replaces default bonus",
			in:   ScoreInput{Rating: ptrF(1), MaxDistanceKm: 20},
			want: 59,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.in); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_NeverNegative(t *testing.T) {
	got := Score(ScoreInput{ActiveBookings: 100, MaxDistanceKm: 0})
	if got < 0 {
		t.Errorf("Score() = %v, want >= 0", got)
	}
}

// ─── Rank ───────────────────────────────────────────────────

type fakeCatalog struct {
	eligible  []model.Provider
	available []model.Provider
	counts    map[uuid.UUID]int
}

func (f *fakeCatalog) EligibleForService(context.Context, uuid.UUID) ([]model.Provider, error) {
	return f.eligible, nil
}

func (f *fakeCatalog) AllAvailable(context.Context) ([]model.Provider, error) {
	return f.available, nil
}

func (f *fakeCatalog) ActiveBookingCounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	if f.counts == nil {
		return map[uuid.UUID]int{}, nil
	}
	return f.counts, nil
}

func testBooking() *model.Booking {
	serviceID := uuid.New()
	return &model.Booking{
		ID:        uuid.New(),
		ServiceID: &serviceID,
		Latitude:  ptrF(28.6315),
		Longitude: ptrF(77.2167),
		Status:    model.BookingPending,
	}
}

func TestRank_OrdersByScoreDescending(t *testing.T) {
	near := model.Provider{ID: uuid.New(), Latitude: ptrF(28.64), Longitude: ptrF(77.22), Rating: ptrF(4.0)}
	far := model.Provider{ID: uuid.New(), Latitude: ptrF(28.90), Longitude: ptrF(77.60), Rating: ptrF(4.0)}

	sel := NewSelector(&fakeCatalog{eligible: []model.Provider{far, near}}, dispatchCfg(), zerolog.Nop())

	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Rank() returned %d candidates, want 2", len(got))
	}
	if got[0].ProviderID != near.ID {
		t.Errorf("Rank()[0] = %s, want the nearer provider %s", got[0].ProviderID, near.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestRank_TieBreakByProviderID(t *testing.T) {
	a := model.Provider{ID: uuid.New()}
	b := model.Provider{ID: uuid.New()}

	sel := NewSelector(&fakeCatalog{eligible: []model.Provider{b, a}}, dispatchCfg(), zerolog.Nop())

	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Rank() returned %d candidates, want 2", len(got))
	}
	if got[0].ProviderID.String() > got[1].ProviderID.String() {
		t.Errorf("tie not broken by id ascending: %s before %s", got[0].ProviderID, got[1].ProviderID)
	}
}

func TestRank_FallsBackToAllAvailable(t *testing.T) {
	fallback := model.Provider{ID: uuid.New()}
	sel := NewSelector(&fakeCatalog{available: []model.Provider{fallback}}, dispatchCfg(), zerolog.Nop())

	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 1 || got[0].ProviderID != fallback.ID {
		t.Fatalf("Rank() = %v, want single fallback candidate", got)
	}
}

func TestRank_NoProvidersAtAll(t *testing.T) {
	sel := NewSelector(&fakeCatalog{}, dispatchCfg(), zerolog.Nop())

	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Rank() = %v, want empty", got)
	}
}

func TestRank_LocationlessProviderBonus(t *testing.T) {
	locationless := model.Provider{ID: uuid.New()}

	// Bonus on: a provider with no coordinates scores the full distance bonus
	// but reports no real distance.
	sel := NewSelector(&fakeCatalog{eligible: []model.Provider{locationless}}, dispatchCfg(), zerolog.Nop())
	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got[0].DistanceKm != nil {
		t.Errorf("DistanceKm = %v, want nil for a locationless provider", *got[0].DistanceKm)
	}
	withBonus := got[0].Score

	// Bonus off: same provider loses the distance component entirely.
	cfg := dispatchCfg()
	cfg.LocationlessFullBonus = false
	sel = NewSelector(&fakeCatalog{eligible: []model.Provider{locationless}}, cfg, zerolog.Nop())
	got, err = sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if diff := withBonus - got[0].Score; diff != cfg.MaxDistanceKm {
		t.Errorf("bonus difference = %v, want %v", diff, cfg.MaxDistanceKm)
	}
}

func TestRank_WorkloadLowersScore(t *testing.T) {
	busy := model.Provider{ID: uuid.New()}
	idle := model.Provider{ID: uuid.New()}

	catalog := &fakeCatalog{
		eligible: []model.Provider{busy, idle},
		counts:   map[uuid.UUID]int{busy.ID: 5},
	}
	sel := NewSelector(catalog, dispatchCfg(), zerolog.Nop())

	got, err := sel.Rank(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got[0].ProviderID != idle.ID {
		t.Errorf("Rank()[0] = %s, want the idle provider %s", got[0].ProviderID, idle.ID)
	}
}
