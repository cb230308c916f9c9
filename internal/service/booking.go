package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
	"github.com/rahulm/quickserve/pkg/geocode"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrInvalidStatus = errors.New("unknown booking status")
)

// geocodeTimeout bounds the best-effort address lookup on booking creation.
const geocodeTimeout = 5 * time.Second

// dispatchTimeout bounds the async dispatch triggered by booking creation.
const dispatchTimeout = 30 * time.Second

// ─── Collaborator interfaces ────────────────────────────────

// BookingStore is the booking persistence surface.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetWithDetails(ctx context.Context, id uuid.UUID) (*model.BookingWithDetails, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *model.BookingStatus, skip, limit int) ([]model.BookingWithDetails, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next model.BookingStatus, actorUserID uuid.UUID, admin bool) (*model.Booking, error)
	Rate(ctx context.Context, id, userID uuid.UUID, rating float64, review *string) (*model.Booking, error)
}

// ServiceCatalog resolves the booked service (existence check and default
// price).
type ServiceCatalog interface {
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
}

// ─── BookingService ─────────────────────────────────────────

// BookingService owns the customer-facing booking lifecycle: creation with
// geocoding and async dispatch, listing, state transitions, cancellation and
// rating.
type BookingService struct {
	store      BookingStore
	catalog    ServiceCatalog
	geocoder   geocode.Geocoder
	dispatcher BookingDispatcher
	realtime   Realtime
	log        zerolog.Logger
}

// NewBookingService creates a booking service.
func NewBookingService(
	store BookingStore,
	catalog ServiceCatalog,
	geocoder geocode.Geocoder,
	dispatcher BookingDispatcher,
	realtime Realtime,
	log zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:      store,
		catalog:    catalog,
		geocoder:   geocoder,
		dispatcher: dispatcher,
		realtime:   realtime,
		log:        log,
	}
}

// CreateBookingInput is the customer's booking request.
type CreateBookingInput struct {
	ServiceID           uuid.UUID
	ServiceDate         time.Time
	ServiceTime         string
	Location            string
	Latitude            *float64
	Longitude           *float64
	Pincode             *string
	SpecialInstructions *string
	EstimatedPrice      *float64
}

// Create inserts the booking and triggers dispatch asynchronously, so the
// customer's request returns as soon as the row is durable. Geocoding is
// best-effort: a failed lookup leaves the coordinates null and the booking
// proceeds.
func (s *BookingService) Create(
	ctx context.Context,
	userID uuid.UUID,
	in CreateBookingInput,
) (*model.BookingWithDetails, error) {

	svc, err := s.catalog.GetService(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}

	price := in.EstimatedPrice
	if price == nil {
		price = &svc.BasePrice
	}

	serviceID := svc.ID
	display := "Finding providers..."
	booking := &model.Booking{
		ID:                  uuid.New(),
		BookingNumber:       NewBookingNumber(time.Now().UTC()),
		UserID:              userID,
		ServiceID:           &serviceID,
		ServiceDate:         in.ServiceDate,
		ServiceTime:         in.ServiceTime,
		Location:            in.Location,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		Pincode:             in.Pincode,
		SpecialInstructions: in.SpecialInstructions,
		Status:              model.BookingPending,
		EstimatedPrice:      price,
		ProviderDistance:    &display,
	}

	if booking.Latitude == nil || booking.Longitude == nil {
		s.geocodeLocation(ctx, booking)
	}

	if err := s.store.Create(ctx, booking); err != nil {
		return nil, err
	}
	metrics.BookingsCreated.Inc()
	s.log.Info().
		Str("booking_id", booking.ID.String()).
		Str("booking_number", booking.BookingNumber).
		Str("user_id", userID.String()).
		Msg("booking created")

	// Dispatch runs detached from the request context; the sweep re-drives
	// any booking whose first dispatch attempt is lost.
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if _, err := s.dispatcher.Dispatch(dctx, booking.ID); err != nil {
			s.log.Error().
				Err(err).
				Str("booking_id", booking.ID.String()).
				Msg("initial dispatch failed")
		}
	}()

	s.realtime.BroadcastToAdmins(map[string]any{
		"type":           "new_booking",
		"booking_id":     booking.ID.String(),
		"booking_number": booking.BookingNumber,
	})

	return s.store.GetWithDetails(ctx, booking.ID)
}

func (s *BookingService) geocodeLocation(ctx context.Context, booking *model.Booking) {
	gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	result, err := s.geocoder.Resolve(gctx, booking.Location)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("booking_id", booking.ID.String()).
			Msg("geocoding failed")
		return
	}
	if result == nil {
		return
	}
	booking.Latitude = &result.Latitude
	booking.Longitude = &result.Longitude
	if booking.Pincode == nil && result.Postcode != nil {
		booking.Pincode = result.Postcode
	}
}

// List returns a page of the user's bookings, optionally filtered by status.
func (s *BookingService) List(
	ctx context.Context,
	userID uuid.UUID,
	status *string,
	skip, limit int,
) ([]model.BookingWithDetails, error) {

	var statusFilter *model.BookingStatus
	if status != nil && *status != "" {
		parsed, err := parseBookingStatus(*status)
		if err != nil {
			return nil, err
		}
		statusFilter = &parsed
	}
	return s.store.ListByUser(ctx, userID, statusFilter, skip, limit)
}

// Get returns one of the caller's bookings with details. Admins can read any
// booking.
func (s *BookingService) Get(
	ctx context.Context,
	userID uuid.UUID,
	admin bool,
	id uuid.UUID,
) (*model.BookingWithDetails, error) {

	booking, err := s.store.GetWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && booking.UserID != userID && !s.callerIsAssignedProvider(booking, userID) {
		return nil, repository.ErrBookingNotOwned
	}
	return booking, nil
}

func (s *BookingService) callerIsAssignedProvider(b *model.BookingWithDetails, userID uuid.UUID) bool {
	return b.Provider != nil && b.Provider.UserID == userID
}

// UpdateStatus moves a booking along the state machine.
func (s *BookingService) UpdateStatus(
	ctx context.Context,
	userID uuid.UUID,
	admin bool,
	id uuid.UUID,
	status string,
) (*model.Booking, error) {

	next, err := parseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateStatus(ctx, id, next, userID, admin)
}

// Cancel soft-cancels a booking. The store declines any pending offers in
// the same transaction.
func (s *BookingService) Cancel(
	ctx context.Context,
	userID uuid.UUID,
	admin bool,
	id uuid.UUID,
) (*model.Booking, error) {
	return s.store.UpdateStatus(ctx, id, model.BookingCancelled, userID, admin)
}

// Rate stores a 1-5 rating (and optional review) on a completed booking and
// atomically refreshes the provider's rolling average.
func (s *BookingService) Rate(
	ctx context.Context,
	userID uuid.UUID,
	id uuid.UUID,
	rating float64,
	review *string,
) (*model.Booking, error) {

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.store.Rate(ctx, id, userID, rating, review)
}

// ─── Helpers ────────────────────────────────────────────────

const bookingNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBookingNumber builds the human-facing booking number: "BK", the date as
// yymmdd, then four random uppercase alphanumerics (e.g. BK260824X7Q2).
func NewBookingNumber(now time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the timestamp so booking creation still works.
		return fmt.Sprintf("BK%s%04d", now.Format("060102"), now.Nanosecond()%10000)
	}
	for i, b := range suffix {
		suffix[i] = bookingNumberAlphabet[int(b)%len(bookingNumberAlphabet)]
	}
	return "BK" + now.Format("060102") + string(suffix)
}

func parseBookingStatus(s string) (model.BookingStatus, error) {
	status := model.BookingStatus(s)
	switch status {
	case model.BookingPending, model.BookingAwaitingProvider, model.BookingConfirmed,
		model.BookingInProgress, model.BookingCompleted, model.BookingCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
