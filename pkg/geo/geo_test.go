package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	got := HaversineKm(28.7041, 77.1025, 28.7041, 77.1025)
	if got != 0 {
		t.Errorf("HaversineKm(same point) = %v, want 0", got)
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Connaught Place to IGI Airport (~16.5 km)
	got := HaversineKm(28.6315, 77.2167, 28.5562, 77.0889)
	wantMin, wantMax := 14.0, 20.0
	if got < wantMin || got > wantMax {
		t.Errorf("HaversineKm(Connaught→IGI) = %.2f km, want between %.1f and %.1f", got, wantMin, wantMax)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := HaversineKm(28.7041, 77.1025, 28.5562, 77.0889)
	b := HaversineKm(28.5562, 77.0889, 28.7041, 77.1025)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("HaversineKm not symmetric: %v vs %v", a, b)
	}
}

func TestEstimateTravelMinutes(t *testing.T) {
	// 15 km at 30 km/h = 30 min
	got := EstimateTravelMinutes(15)
	if math.Abs(got-30) > 1e-9 {
		t.Errorf("EstimateTravelMinutes(15) = %v, want 30", got)
	}
}
