package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/notify"
)

type fakeSweepStore struct {
	expired      int64
	needing      []uuid.UUID
	scheduled    []uuid.UUID
	awaiting     []model.OfferWithBooking
	expireErr    error
	gotCutoff    time.Time
	gotExpireLim int
}

func (f *fakeSweepStore) ExpireStale(_ context.Context, limit int) (int64, error) {
	f.gotExpireLim = limit
	return f.expired, f.expireErr
}

func (f *fakeSweepStore) BookingsNeedingDispatch(context.Context, int) ([]uuid.UUID, error) {
	return f.needing, nil
}

func (f *fakeSweepStore) ScheduledNeedingDispatch(_ context.Context, cutoff time.Time, _ int) ([]uuid.UUID, error) {
	f.gotCutoff = cutoff
	return f.scheduled, nil
}

func (f *fakeSweepStore) AwaitingWithPendingOffers(context.Context, int) ([]model.OfferWithBooking, error) {
	return f.awaiting, nil
}

// flakyDispatcher fails for the ids in fail and records the rest.
type flakyDispatcher struct {
	fail  map[uuid.UUID]bool
	calls []uuid.UUID
}

func (f *flakyDispatcher) Dispatch(_ context.Context, id uuid.UUID) ([]model.Offer, error) {
	if f.fail[id] {
		return nil, errors.New("boom")
	}
	f.calls = append(f.calls, id)
	return nil, nil
}

func sweepCfg() config.DispatchConfig {
	cfg := dispatchCfg()
	cfg.SweepBatchSize = 200
	cfg.ScheduledWindow = 24 * time.Hour
	return cfg
}

func TestSweeperRunOnce_DispatchesDriftedBookings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	store := &fakeSweepStore{expired: 3, needing: []uuid.UUID{a, b}}
	disp := &flakyDispatcher{}

	s := NewSweeper(store, disp, notify.NopNotifier{}, sweepCfg(), zerolog.Nop())
	s.RunOnce(context.Background())

	assert.Equal(t, []uuid.UUID{a, b}, disp.calls)
	assert.Equal(t, 200, store.gotExpireLim)
}

func TestSweeperRunOnce_FailureDoesNotStallBatch(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	store := &fakeSweepStore{needing: []uuid.UUID{bad, good}}
	disp := &flakyDispatcher{fail: map[uuid.UUID]bool{bad: true}}

	s := NewSweeper(store, disp, notify.NopNotifier{}, sweepCfg(), zerolog.Nop())
	s.RunOnce(context.Background())

	assert.Equal(t, []uuid.UUID{good}, disp.calls)
}

func TestSweeperRunScheduled_UsesWindowCutoff(t *testing.T) {
	id := uuid.New()
	store := &fakeSweepStore{scheduled: []uuid.UUID{id}}
	disp := &flakyDispatcher{}

	s := NewSweeper(store, disp, notify.NopNotifier{}, sweepCfg(), zerolog.Nop())

	before := time.Now().UTC().Add(24 * time.Hour)
	s.RunScheduled(context.Background())
	after := time.Now().UTC().Add(24 * time.Hour)

	assert.Equal(t, []uuid.UUID{id}, disp.calls)
	assert.False(t, store.gotCutoff.Before(before))
	assert.False(t, store.gotCutoff.After(after))
}

func TestSweeperRunOnce_ExpireErrorIsIsolated(t *testing.T) {
	id := uuid.New()
	store := &fakeSweepStore{expireErr: errors.New("db down"), needing: []uuid.UUID{id}}
	disp := &flakyDispatcher{}

	s := NewSweeper(store, disp, notify.NopNotifier{}, sweepCfg(), zerolog.Nop())
	s.RunOnce(context.Background())

	// Sweep A failing must not block sweep B.
	assert.Equal(t, []uuid.UUID{id}, disp.calls)
}
