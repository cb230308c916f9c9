package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
)

// ─── Collaborator interfaces ────────────────────────────────

// ProviderResolver maps an authenticated user to their provider profile.
type ProviderResolver interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Provider, error)
}

// OfferStore is the offer queue surface the arbiter needs.
type OfferStore interface {
	PendingByProvider(ctx context.Context, providerID uuid.UUID) ([]model.OfferWithBooking, error)
	Accept(ctx context.Context, offerID, providerID uuid.UUID) (*model.Booking, error)
	Decline(ctx context.Context, offerID, providerID uuid.UUID) error
}

// ─── Arbiter ────────────────────────────────────────────────

// Arbiter handles the provider side of the offer queue: listing pending
// offers and processing accept/decline responses.
//
// State conflicts (offer already taken, expired, booking won by someone
// else) are expected outcomes of the race, so they come back as structured
// OfferDecision results, never as errors. Errors are reserved for the caller
// not being a provider and for infrastructure failures.
type Arbiter struct {
	providers ProviderResolver
	offers    OfferStore
	realtime  Realtime
	log       zerolog.Logger
}

// NewArbiter creates an arbitration engine.
func NewArbiter(providers ProviderResolver, offers OfferStore, realtime Realtime, log zerolog.Logger) *Arbiter {
	return &Arbiter{providers: providers, offers: offers, realtime: realtime, log: log}
}

// ListPending returns the caller's live offers with booking details. Expiry
// is applied lazily in the store before the listing, so the app never sees a
// stale offer.
func (a *Arbiter) ListPending(ctx context.Context, userID uuid.UUID) ([]model.OfferWithBooking, error) {
	provider, err := a.providers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.offers.PendingByProvider(ctx, provider.ID)
}

// Accept processes a provider's accept. Exactly one accept per booking can
// win; the store serializes the election on the booking row lock.
func (a *Arbiter) Accept(ctx context.Context, userID, offerID uuid.UUID) (*model.OfferDecision, error) {
	provider, err := a.providers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	booking, err := a.offers.Accept(ctx, offerID, provider.ID)
	if err != nil {
		decision := acceptConflict(err)
		if decision == nil {
			return nil, fmt.Errorf("arbiter: accept offer %s: %w", offerID, err)
		}
		metrics.AcceptConflicts.Inc()
		a.log.Info().
			Str("offer_id", offerID.String()).
			Str("provider_id", provider.ID.String()).
			Str("reason", decision.Error).
			Msg("accept rejected")
		return decision, nil
	}

	metrics.AcceptsWon.Inc()
	a.log.Info().
		Str("offer_id", offerID.String()).
		Str("booking_id", booking.ID.String()).
		Str("provider_id", provider.ID.String()).
		Msg("offer accepted")

	a.realtime.SendToUser(booking.UserID, bookingEvent(booking.ID, model.BookingConfirmed))
	a.realtime.BroadcastToAdmins(bookingEvent(booking.ID, model.BookingConfirmed))

	return &model.OfferDecision{
		Success:   true,
		Message:   "Booking accepted successfully",
		BookingID: &booking.ID,
	}, nil
}

// Decline processes a provider's decline. Re-dispatching the booking when no
// live offers remain is the reconciliation sweep's job; decline stays cheap.
func (a *Arbiter) Decline(ctx context.Context, userID, offerID uuid.UUID) (*model.OfferDecision, error) {
	provider, err := a.providers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := a.offers.Decline(ctx, offerID, provider.ID); err != nil {
		decision := acceptConflict(err)
		if decision == nil {
			return nil, fmt.Errorf("arbiter: decline offer %s: %w", offerID, err)
		}
		return decision, nil
	}

	metrics.Declines.Inc()
	a.log.Info().
		Str("offer_id", offerID.String()).
		Str("provider_id", provider.ID.String()).
		Msg("offer declined")

	return &model.OfferDecision{Success: true, Message: "Assignment declined"}, nil
}

// acceptConflict translates a store rejection into the user-visible decision,
// or nil when the error is not a state conflict.
func acceptConflict(err error) *model.OfferDecision {
	var stateErr *repository.OfferStateError

	switch {
	case errors.Is(err, repository.ErrOfferNotFound):
		return &model.OfferDecision{Error: "Assignment not found"}
	case errors.Is(err, repository.ErrOfferNotOwned):
		return &model.OfferDecision{Error: "Unauthorized"}
	case errors.As(err, &stateErr):
		return &model.OfferDecision{Error: fmt.Sprintf("Assignment already %s", stateErr.Status)}
	case errors.Is(err, repository.ErrOfferExpired):
		return &model.OfferDecision{Error: "Assignment has expired"}
	case errors.Is(err, repository.ErrBookingNotFound):
		return &model.OfferDecision{Error: "Booking not found"}
	case errors.Is(err, repository.ErrBookingAssigned):
		return &model.OfferDecision{Error: "Booking already assigned to another provider"}
	case errors.Is(err, repository.ErrBookingClosed):
		return &model.OfferDecision{Error: "Booking is no longer active"}
	}
	return nil
}
