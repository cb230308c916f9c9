package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/notify"
	"github.com/rahulm/quickserve/internal/repository"
)

// ─── Collaborator interfaces ────────────────────────────────

// CandidateRanker produces the scored candidate list for a booking.
type CandidateRanker interface {
	Rank(ctx context.Context, booking *model.Booking) ([]model.Candidate, error)
}

// OfferWriter creates the pending offers for a booking under the dispatch
// guard.
type OfferWriter interface {
	CreateOffers(ctx context.Context, bookingID uuid.UUID, candidates []model.Candidate, ttl time.Duration) ([]model.Offer, error)
}

// BookingDetails loads a booking with its joined service and provider.
type BookingDetails interface {
	GetWithDetails(ctx context.Context, id uuid.UUID) (*model.BookingWithDetails, error)
}

// Realtime is the best-effort WebSocket fan-out surface.
type Realtime interface {
	SendToUser(userID uuid.UUID, v any)
	BroadcastToAdmins(v any)
}

// ─── Dispatcher ─────────────────────────────────────────────

// Dispatcher runs one dispatch attempt for a booking: rank candidates, write
// the top-N offers with their TTL, then fire notifications.
//
// Idempotency comes from the offer store: creating offers while any pending
// offer exists is rejected under the booking row lock, so concurrent dispatch
// attempts (creation path racing a reconciliation sweep) collapse to one.
type Dispatcher struct {
	ranker   CandidateRanker
	offers   OfferWriter
	bookings BookingDetails
	notifier notify.Notifier
	realtime Realtime
	cfg      config.DispatchConfig
	log      zerolog.Logger
}

// NewDispatcher creates an offer dispatcher.
func NewDispatcher(
	ranker CandidateRanker,
	offers OfferWriter,
	bookings BookingDetails,
	notifier notify.Notifier,
	realtime Realtime,
	cfg config.DispatchConfig,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		ranker:   ranker,
		offers:   offers,
		bookings: bookings,
		notifier: notifier,
		realtime: realtime,
		cfg:      cfg,
		log:      log,
	}
}

// Dispatch attempts to create offers for the booking. A booking that is
// already assigned, closed, or mid-dispatch is a clean no-op, not an error;
// the sweep calls this blindly over whole batches.
func (d *Dispatcher) Dispatch(ctx context.Context, bookingID uuid.UUID) ([]model.Offer, error) {
	booking, err := d.bookings.GetWithDetails(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load booking %s: %w", bookingID, err)
	}
	if booking.Status.Terminal() || booking.ProviderID != nil {
		return nil, nil
	}

	// ── Step 1: Rank candidates ─────────────────────────
	candidates, err := d.ranker.Rank(ctx, &booking.Booking)
	if err != nil {
		return nil, fmt.Errorf("dispatch: rank booking %s: %w", bookingID, err)
	}
	if len(candidates) > d.cfg.TopN {
		candidates = candidates[:d.cfg.TopN]
	}

	// ── Step 2: Write offers, bounded retries ───────────
	// Transient store errors are retried; guard rejections (offers already
	// pending, booking assigned or closed) end the attempt immediately.
	var offers []model.Offer
	err = retry.Do(
		func() error {
			created, cerr := d.offers.CreateOffers(ctx, bookingID, candidates, d.cfg.OfferTTL)
			if cerr != nil {
				if isDispatchGuard(cerr) {
					return retry.Unrecoverable(cerr)
				}
				return cerr
			}
			offers = created
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if isDispatchGuard(err) {
			d.log.Debug().
				Str("booking_id", bookingID.String()).
				Err(err).
				Msg("dispatch skipped")
			return nil, nil
		}
		return nil, fmt.Errorf("dispatch: create offers for %s: %w", bookingID, err)
	}

	// ── Step 3: No candidates, booking parked ───────────
	if len(offers) == 0 {
		metrics.DispatchEmpty.Inc()
		d.log.Warn().
			Str("booking_id", bookingID.String()).
			Msg("no candidates for booking")
		d.realtime.SendToUser(booking.UserID, bookingEvent(bookingID, model.BookingPending))
		return offers, nil
	}

	// ── Step 4: Side effects, after the transaction ─────
	// Notifications run outside any database lock and are best-effort.
	metrics.OffersCreated.Add(float64(len(offers)))
	d.notifyOffers(ctx, offers, booking)

	d.realtime.SendToUser(booking.UserID, bookingEvent(bookingID, model.BookingAwaitingProvider))
	d.realtime.BroadcastToAdmins(bookingEvent(bookingID, model.BookingAwaitingProvider))

	d.log.Info().
		Str("booking_id", bookingID.String()).
		Int("offer_count", len(offers)).
		Float64("top_score", offers[0].Score).
		Msg("offers dispatched")
	return offers, nil
}

func (d *Dispatcher) notifyOffers(ctx context.Context, offers []model.Offer, booking *model.BookingWithDetails) {
	for _, o := range offers {
		if err := d.notifier.NewAssignment(ctx, o, booking); err != nil {
			d.log.Warn().
				Err(err).
				Str("offer_id", o.ID.String()).
				Msg("offer notification failed")
		}
	}
}

func isDispatchGuard(err error) bool {
	return errors.Is(err, repository.ErrOffersPending) ||
		errors.Is(err, repository.ErrBookingAssigned) ||
		errors.Is(err, repository.ErrBookingClosed)
}

func bookingEvent(bookingID uuid.UUID, status model.BookingStatus) map[string]any {
	return map[string]any{
		"type":       "booking_update",
		"booking_id": bookingID.String(),
		"status":     string(status),
	}
}
