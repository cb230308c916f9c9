package config

import (
	"testing"

	"github.com/robfig/cron/v3"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dispatch.TopN != 3 {
		t.Errorf("TopN = %d, want 3", cfg.Dispatch.TopN)
	}
	if cfg.Dispatch.OfferTTL.Minutes() != 5 {
		t.Errorf("OfferTTL = %v, want 5m", cfg.Dispatch.OfferTTL)
	}
	if cfg.Dispatch.MaxDistanceKm != 20 {
		t.Errorf("MaxDistanceKm = %v, want 20", cfg.Dispatch.MaxDistanceKm)
	}
}

// The server refuses to start on a malformed sweep schedule, so the shipped
// defaults must always parse.
func TestLoad_DefaultSweepSchedulesParse(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for name, spec := range map[string]string{
		"sweep":           cfg.Dispatch.SweepSchedule,
		"scheduled sweep": cfg.Dispatch.ScheduledSweepSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			t.Errorf("%s schedule %q does not parse: %v", name, spec, err)
		}
	}
}
