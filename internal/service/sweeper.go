package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/notify"
)

// ─── Collaborator interfaces ────────────────────────────────

// SweepStore is the reconciliation surface of the offer queue.
type SweepStore interface {
	ExpireStale(ctx context.Context, limit int) (int64, error)
	BookingsNeedingDispatch(ctx context.Context, limit int) ([]uuid.UUID, error)
	ScheduledNeedingDispatch(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	AwaitingWithPendingOffers(ctx context.Context, limit int) ([]model.OfferWithBooking, error)
}

// BookingDispatcher runs one dispatch attempt for a booking.
type BookingDispatcher interface {
	Dispatch(ctx context.Context, bookingID uuid.UUID) ([]model.Offer, error)
}

// ─── Sweeper ────────────────────────────────────────────────

// Sweeper runs the periodic reconciliation passes that guarantee every open
// booking eventually reaches a terminal state:
//
//	A: expire pending offers past their TTL
//	B: re-dispatch open bookings that have no live offer
//	C: re-fire notifications for live offers (compensates dropped pushes)
//	D: hourly, sweep B restricted to bookings due inside the window
//
// Every pass is idempotent and caps the rows it touches per tick, so sweeps
// are safe to run concurrently with user traffic. A single booking's failure
// is logged and skipped; it must not stall the rest of the batch.
type Sweeper struct {
	store      SweepStore
	dispatcher BookingDispatcher
	notifier   notify.Notifier
	cfg        config.DispatchConfig
	log        zerolog.Logger
}

// NewSweeper creates a reconciliation sweeper.
func NewSweeper(
	store SweepStore,
	dispatcher BookingDispatcher,
	notifier notify.Notifier,
	cfg config.DispatchConfig,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
	}
}

// RunOnce executes sweeps A, B and C in order. Called on the minute cadence.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.expireStale(ctx)
	s.redispatch(ctx)
	s.refreshNotifications(ctx)
}

// RunScheduled executes sweep D: pick up bookings whose service date falls
// inside the scheduled window and make sure they have live offers. Called on
// the hourly cadence.
func (s *Sweeper) RunScheduled(ctx context.Context) {
	cutoff := time.Now().UTC().Add(s.cfg.ScheduledWindow)

	ids, err := s.store.ScheduledNeedingDispatch(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep D: query failed")
		return
	}
	s.dispatchBatch(ctx, ids, "sweep D")
}

// ─── Sweep A: expire stale offers ───────────────────────────

func (s *Sweeper) expireStale(ctx context.Context) {
	expired, err := s.store.ExpireStale(ctx, s.cfg.SweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep A: expire failed")
		return
	}
	if expired > 0 {
		metrics.OffersExpired.Add(float64(expired))
		s.log.Info().Int64("expired", expired).Msg("sweep A: offers expired")
	}
}

// ─── Sweep B: re-dispatch drift ─────────────────────────────

func (s *Sweeper) redispatch(ctx context.Context) {
	ids, err := s.store.BookingsNeedingDispatch(ctx, s.cfg.SweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep B: query failed")
		return
	}
	s.dispatchBatch(ctx, ids, "sweep B")
}

func (s *Sweeper) dispatchBatch(ctx context.Context, ids []uuid.UUID, sweep string) {
	if len(ids) == 0 {
		return
	}
	dispatched := 0
	for _, id := range ids {
		if _, err := s.dispatcher.Dispatch(ctx, id); err != nil {
			s.log.Error().
				Err(err).
				Str("booking_id", id.String()).
				Msgf("%s: dispatch failed", sweep)
			continue
		}
		dispatched++
	}
	metrics.Redispatches.Add(float64(dispatched))
	s.log.Info().
		Int("bookings", len(ids)).
		Int("dispatched", dispatched).
		Msgf("%s: re-dispatch pass done", sweep)
}

// ─── Sweep C: notify refresh ────────────────────────────────

func (s *Sweeper) refreshNotifications(ctx context.Context) {
	offers, err := s.store.AwaitingWithPendingOffers(ctx, s.cfg.SweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep C: query failed")
		return
	}
	if len(offers) == 0 {
		return
	}

	refreshed := 0
	for _, o := range offers {
		if err := s.notifier.NewAssignment(ctx, o.Offer, o.Booking); err != nil {
			s.log.Warn().
				Err(err).
				Str("offer_id", o.ID.String()).
				Msg("sweep C: notification failed")
			continue
		}
		refreshed++
	}
	metrics.NotifyRefreshes.Add(float64(refreshed))
	s.log.Info().
		Int("offers", len(offers)).
		Int("refreshed", refreshed).
		Msg("sweep C: notify refresh done")
}
