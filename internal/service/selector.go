// Package service contains the dispatch core: candidate selection, offer
// dispatch, accept/decline arbitration, reconciliation sweeps, and the
// booking lifecycle.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/pkg/geo"
)

// ─── Scoring weights ────────────────────────────────────────

const (
	// BaseScore is granted to every available candidate.
	BaseScore = 25.0
	// RatingWeight multiplies the provider's rolling rating.
	RatingWeight = 4.0
	// DefaultRatingBonus applies when a provider has no rating yet.
	DefaultRatingBonus = 12.0
	// ServiceMatchBonus applies uniformly to candidates that survived the
	// eligibility filter.
	ServiceMatchBonus = 30.0
	// PincodeMatchBonus applies when booking and provider pincodes are both
	// set and equal.
	PincodeMatchBonus = 10.0
	// WorkloadPenaltyPerBooking is subtracted per active booking, up to
	// WorkloadPenaltyCap. Active = pending, confirmed or in_progress.
	WorkloadPenaltyPerBooking = 2.0
	WorkloadPenaltyCap        = 15.0
	// ExperienceBonusCap limits the +1 per year of experience.
	ExperienceBonusCap = 10.0
)

// ─── Selector ───────────────────────────────────────────────

// ProviderCatalog is the provider store surface the selector needs.
type ProviderCatalog interface {
	EligibleForService(ctx context.Context, serviceID uuid.UUID) ([]model.Provider, error)
	AllAvailable(ctx context.Context) ([]model.Provider, error)
	ActiveBookingCounts(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// Selector ranks eligible providers for a booking.
//
// Eligibility: providers linked to the booking's service and available. When
// that set is empty the selector broadens to every available provider (a
// partial catalog must not starve bookings) and logs the fallback.
//
// Complexity: two batch queries (eligibility, active counts) plus an
// O(P log P) sort over the surviving providers. No per-provider roundtrips.
type Selector struct {
	catalog ProviderCatalog
	cfg     config.DispatchConfig
	log     zerolog.Logger
}

// NewSelector creates a candidate selector.
func NewSelector(catalog ProviderCatalog, cfg config.DispatchConfig, log zerolog.Logger) *Selector {
	return &Selector{catalog: catalog, cfg: cfg, log: log}
}

// Rank returns every scored candidate for the booking, descending by score,
// ties broken by provider id ascending so results are deterministic. The
// dispatcher truncates to top-N.
func (s *Selector) Rank(ctx context.Context, booking *model.Booking) ([]model.Candidate, error) {
	// ── Step 1: Eligibility filter ──────────────────────
	var providers []model.Provider
	var err error

	if booking.ServiceID != nil {
		providers, err = s.catalog.EligibleForService(ctx, *booking.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("selector: eligible providers: %w", err)
		}
	}

	// Fallback: no linked provider exists, broaden to all available ones.
	// This can match providers unqualified for the service, so it is logged.
	if len(providers) == 0 {
		providers, err = s.catalog.AllAvailable(ctx)
		if err != nil {
			return nil, fmt.Errorf("selector: fallback providers: %w", err)
		}
		if len(providers) > 0 {
			metrics.FallbackActivations.Inc()
			s.log.Warn().
				Str("booking_id", booking.ID.String()).
				Int("provider_count", len(providers)).
				Msg("no service-linked providers, falling back to all available")
		}
	}

	if len(providers) == 0 {
		return []model.Candidate{}, nil
	}

	// ── Step 2: Workload counts, one batch query ────────
	ids := lo.Map(providers, func(p model.Provider, _ int) uuid.UUID { return p.ID })
	activeCounts, err := s.catalog.ActiveBookingCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("selector: active booking counts: %w", err)
	}

	// ── Step 3: Score ───────────────────────────────────
	candidates := make([]model.Candidate, 0, len(providers))
	for i := range providers {
		p := &providers[i]

		realDistance, effectiveDistance := s.distances(booking, p)

		score := Score(ScoreInput{
			Rating:          p.Rating,
			ExperienceYears: p.ExperienceYears,
			ActiveBookings:  activeCounts[p.ID],
			PincodeMatch:    pincodeMatch(booking.Pincode, p.Pincode),
			DistanceKm:      effectiveDistance,
			MaxDistanceKm:   s.cfg.MaxDistanceKm,
		})

		candidates = append(candidates, model.Candidate{
			ProviderID: p.ID,
			Score:      score,
			DistanceKm: realDistance,
		})
	}

	// ── Step 4: Deterministic ordering ──────────────────
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ProviderID.String() < candidates[j].ProviderID.String()
	})

	return candidates, nil
}

// distances returns the real haversine distance (nil unless both sides have
// coordinates) and the effective distance used for the bonus. A provider
// without coordinates gets effective distance 0, the full bonus, when the
// locationless-full-bonus option is on; that keeps location-less providers
// discoverable at the cost of letting them outrank nearby ones.
func (s *Selector) distances(booking *model.Booking, p *model.Provider) (real, effective *float64) {
	if booking.Latitude == nil || booking.Longitude == nil {
		return nil, nil
	}
	if p.Latitude == nil || p.Longitude == nil {
		if s.cfg.LocationlessFullBonus {
			zero := 0.0
			return nil, &zero
		}
		return nil, nil
	}
	km := geo.HaversineKm(*booking.Latitude, *booking.Longitude, *p.Latitude, *p.Longitude)
	return &km, &km
}

func pincodeMatch(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

// ─── Scoring function ───────────────────────────────────────

// ScoreInput carries the per-candidate facts the scoring function needs.
// DistanceKm is the effective distance for the bonus; nil means no distance
// bonus at all.
type ScoreInput struct {
	Rating          *float64
	ExperienceYears *int
	ActiveBookings  int
	PincodeMatch    bool
	DistanceKm      *float64
	MaxDistanceKm   float64
}

// Score computes the additive candidate score, floored at 0.
func Score(in ScoreInput) float64 {
	score := BaseScore

	if in.Rating != nil {
		score += RatingWeight * *in.Rating
	} else {
		score += DefaultRatingBonus
	}

	score += ServiceMatchBonus

	if in.DistanceKm != nil {
		if bonus := in.MaxDistanceKm - *in.DistanceKm; bonus > 0 {
			score += bonus
		}
	}

	if in.PincodeMatch {
		score += PincodeMatchBonus
	}

	penalty := WorkloadPenaltyPerBooking * float64(in.ActiveBookings)
	if penalty > WorkloadPenaltyCap {
		penalty = WorkloadPenaltyCap
	}
	score -= penalty

	if in.ExperienceYears != nil {
		bonus := float64(*in.ExperienceYears)
		if bonus > ExperienceBonusCap {
			bonus = ExperienceBonusCap
		}
		score += bonus
	}

	if score < 0 {
		return 0
	}
	return score
}
