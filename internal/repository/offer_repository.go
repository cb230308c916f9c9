package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/pkg/geo"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrOfferNotFound   = errors.New("offer not found")
	ErrOfferNotOwned   = errors.New("offer belongs to another provider")
	ErrOfferExpired    = errors.New("offer has expired")
	ErrBookingAssigned = errors.New("booking already assigned to another provider")
	ErrBookingClosed   = errors.New("booking is not open for offers")
	ErrOffersPending   = errors.New("booking already has pending offers")
)

// OfferStateError is returned when an offer is acted on after it already left
// the pending state. The terminal status is carried for the client message.
type OfferStateError struct {
	Status model.OfferStatus
}

func (e *OfferStateError) Error() string {
	return fmt.Sprintf("offer already %s", e.Status)
}

// ─── OfferRepository ────────────────────────────────────────

// OfferRepository owns the offer queue: creation under the dispatch guard,
// winner election on accept, and the reconciliation sweep queries.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository creates a new offer repository.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// ─── Dispatch: create offers ────────────────────────────────

// CreateOffers writes one pending offer per candidate for the booking and
// moves the booking to awaiting_provider. With zero candidates the booking is
// parked in pending with a "No providers available" display string.
//
// Concurrency: the booking row is locked with SELECT ... FOR UPDATE for the
// whole transaction. The pending-offer count is checked under that lock, so
// two dispatchers racing on the same booking cannot both create offers: the
// second blocks, re-reads, sees pending rows, and gets ErrOffersPending.
func (r *OfferRepository) CreateOffers(
	ctx context.Context,
	bookingID uuid.UUID,
	candidates []model.Candidate,
	ttl time.Duration,
) ([]model.Offer, error) {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("offers: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: LOCK the booking row ────────────────────
	var (
		status     model.BookingStatus
		providerID *uuid.UUID
	)
	err = tx.QueryRow(ctx, `
		SELECT status, provider_id
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID).Scan(&status, &providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("offers: lock booking %s: %w", bookingID, err)
	}

	// ── Step 2: Validate the booking is dispatchable ────
	if providerID != nil {
		return nil, ErrBookingAssigned
	}
	if status.Terminal() || status == model.BookingConfirmed || status == model.BookingInProgress {
		return nil, ErrBookingClosed
	}

	// ── Step 3: Idempotency guard ───────────────────────
	// Any live offer means a dispatch is already in flight.
	var pendingCount int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM offers
		WHERE booking_id = $1 AND status = 'pending'
	`, bookingID).Scan(&pendingCount)
	if err != nil {
		return nil, fmt.Errorf("offers: count pending for booking %s: %w", bookingID, err)
	}
	if pendingCount > 0 {
		return nil, ErrOffersPending
	}

	// ── Step 4: No candidates, park the booking ─────────
	if len(candidates) == 0 {
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'pending', provider_distance = 'No providers available', updated_at = now()
			WHERE id = $1
		`, bookingID)
		if err != nil {
			return nil, fmt.Errorf("offers: park booking %s: %w", bookingID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("offers: commit: %w", err)
		}
		return []model.Offer{}, nil
	}

	// ── Step 5: Insert pending offers ───────────────────
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	offers := make([]model.Offer, 0, len(candidates))
	for _, c := range candidates {
		o := model.Offer{
			ID:         uuid.New(),
			BookingID:  bookingID,
			ProviderID: c.ProviderID,
			Status:     model.OfferPending,
			Score:      c.Score,
			NotifiedAt: &now,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO offers (id, booking_id, provider_id, status, score, notified_at, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.ID, o.BookingID, o.ProviderID, o.Status, o.Score, o.NotifiedAt, o.ExpiresAt, o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("offers: insert offer for provider %s: %w", c.ProviderID, err)
		}
		offers = append(offers, o)
	}

	// ── Step 6: Move the booking to awaiting_provider ───
	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'awaiting_provider', provider_distance = 'Finding providers...', updated_at = now()
		WHERE id = $1
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("offers: update booking %s: %w", bookingID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("offers: commit: %w", err)
	}
	return offers, nil
}

// ─── Arbitration: accept ────────────────────────────────────

// Accept elects the calling provider as the booking's winner.
//
// Validation order (each failure maps to a distinct user-visible reason):
// offer exists → caller owns it → still pending → not expired → booking
// exists and is unassigned. On success, in one transaction: this offer is
// accepted, every sibling pending offer is declined, and the booking gets the
// provider, confirmed status and display distance/arrival strings.
//
// Concurrency strategy: PESSIMISTIC LOCKING.
//
//	T1: BEGIN → lock offer O1 → lock booking B → provider_id NULL → win → COMMIT
//	T2: BEGIN → lock offer O2 → lock booking B → (BLOCKS on T1)
//	T2: (unblocked) → re-reads B → provider_id set → ErrBookingAssigned
//
// Both transactions take locks in the same order (own offer, then booking),
// so there is no deadlock cycle. Exactly one accept per booking can win.
func (r *OfferRepository) Accept(
	ctx context.Context,
	offerID uuid.UUID,
	providerID uuid.UUID,
) (*model.Booking, error) {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("accept: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: LOCK the offer ──────────────────────────
	var (
		bookingID   uuid.UUID
		offerOwner  uuid.UUID
		offerStatus model.OfferStatus
		expiresAt   time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT booking_id, provider_id, status, expires_at
		FROM offers
		WHERE id = $1
		FOR UPDATE
	`, offerID).Scan(&bookingID, &offerOwner, &offerStatus, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("accept: lock offer %s: %w", offerID, err)
	}

	// ── Step 2: Validate ownership and state ────────────
	if offerOwner != providerID {
		return nil, ErrOfferNotOwned
	}
	if offerStatus != model.OfferPending {
		return nil, &OfferStateError{Status: offerStatus}
	}

	now := time.Now().UTC()
	if expiresAt.Before(now) {
		// Persist the lazy expiration before rejecting.
		_, err = tx.Exec(ctx, `
			UPDATE offers SET status = 'expired' WHERE id = $1
		`, offerID)
		if err != nil {
			return nil, fmt.Errorf("accept: expire offer %s: %w", offerID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("accept: commit expiry: %w", err)
		}
		return nil, ErrOfferExpired
	}

	// ── Step 3: Lock the booking, the arbitration point ─
	booking := &model.Booking{}
	err = tx.QueryRow(ctx, `
		SELECT id, booking_number, user_id, service_id, provider_id,
		       service_date, service_time, location, latitude, longitude,
		       pincode, special_instructions, status, estimated_price,
		       final_price, rating, review, provider_distance,
		       estimated_arrival, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID).Scan(
		&booking.ID, &booking.BookingNumber, &booking.UserID, &booking.ServiceID,
		&booking.ProviderID, &booking.ServiceDate, &booking.ServiceTime,
		&booking.Location, &booking.Latitude, &booking.Longitude, &booking.Pincode,
		&booking.SpecialInstructions, &booking.Status, &booking.EstimatedPrice,
		&booking.FinalPrice, &booking.Rating, &booking.Review,
		&booking.ProviderDistance, &booking.EstimatedArrival,
		&booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("accept: lock booking %s: %w", bookingID, err)
	}

	if booking.ProviderID != nil {
		return nil, ErrBookingAssigned
	}
	if booking.Status.Terminal() {
		return nil, ErrBookingClosed
	}

	// ── Step 4: Accept this offer, decline the siblings ─
	_, err = tx.Exec(ctx, `
		UPDATE offers
		SET status = 'accepted', responded_at = $2
		WHERE id = $1
	`, offerID, now)
	if err != nil {
		return nil, fmt.Errorf("accept: update offer %s: %w", offerID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE offers
		SET status = 'declined', responded_at = $3
		WHERE booking_id = $1 AND id <> $2 AND status = 'pending'
	`, bookingID, offerID, now)
	if err != nil {
		return nil, fmt.Errorf("accept: decline siblings for booking %s: %w", bookingID, err)
	}

	// ── Step 5: Assign the booking ──────────────────────
	distance, arrival := r.displayEstimates(ctx, tx, booking, providerID)

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET provider_id = $2, status = 'confirmed',
		    provider_distance = $3, estimated_arrival = $4, updated_at = $5
		WHERE id = $1
	`, bookingID, providerID, distance, arrival, now)
	if err != nil {
		return nil, fmt.Errorf("accept: update booking %s: %w", bookingID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("accept: commit: %w", err)
	}

	booking.ProviderID = &providerID
	booking.Status = model.BookingConfirmed
	booking.ProviderDistance = &distance
	booking.EstimatedArrival = &arrival
	booking.UpdatedAt = now
	return booking, nil
}

// displayEstimates derives the display-only distance and arrival strings.
// When both sides have coordinates they come from haversine; otherwise a
// placeholder range is shown. Never affects dispatch state.
func (r *OfferRepository) displayEstimates(
	ctx context.Context,
	tx pgx.Tx,
	booking *model.Booking,
	providerID uuid.UUID,
) (string, string) {

	var pLat, pLon *float64
	err := tx.QueryRow(ctx, `
		SELECT latitude, longitude FROM providers WHERE id = $1
	`, providerID).Scan(&pLat, &pLon)
	if err != nil || pLat == nil || pLon == nil ||
		booking.Latitude == nil || booking.Longitude == nil {
		return "Distance unavailable", "30-45 mins"
	}

	km := geo.HaversineKm(*booking.Latitude, *booking.Longitude, *pLat, *pLon)
	mins := int(geo.EstimateTravelMinutes(km))
	if mins < 10 {
		mins = 10
	}
	return fmt.Sprintf("%.1f km away", km), fmt.Sprintf("%d-%d mins", mins, mins+15)
}

// ─── Arbitration: decline ───────────────────────────────────

// Decline marks the caller's pending offer as declined. If the booking is
// left with no pending offers and no provider, its display string flips to
// "Searching for more providers...". The actual re-dispatch belongs to the
// reconciliation sweep, which keeps decline cheap and idempotent.
func (r *OfferRepository) Decline(
	ctx context.Context,
	offerID uuid.UUID,
	providerID uuid.UUID,
) error {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("decline: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		bookingID   uuid.UUID
		offerOwner  uuid.UUID
		offerStatus model.OfferStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT booking_id, provider_id, status
		FROM offers
		WHERE id = $1
		FOR UPDATE
	`, offerID).Scan(&bookingID, &offerOwner, &offerStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOfferNotFound
		}
		return fmt.Errorf("decline: lock offer %s: %w", offerID, err)
	}

	if offerOwner != providerID {
		return ErrOfferNotOwned
	}
	if offerStatus != model.OfferPending {
		return &OfferStateError{Status: offerStatus}
	}

	_, err = tx.Exec(ctx, `
		UPDATE offers
		SET status = 'declined', responded_at = $2
		WHERE id = $1
	`, offerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decline: update offer %s: %w", offerID, err)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM offers
		WHERE booking_id = $1 AND status = 'pending'
	`, bookingID).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("decline: count remaining for booking %s: %w", bookingID, err)
	}

	if remaining == 0 {
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET provider_distance = 'Searching for more providers...', updated_at = now()
			WHERE id = $1 AND provider_id IS NULL
		`, bookingID)
		if err != nil {
			return fmt.Errorf("decline: update booking %s: %w", bookingID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("decline: commit: %w", err)
	}
	return nil
}

// ─── Listing ────────────────────────────────────────────────

// PendingByProvider returns the provider's pending offers joined with booking
// and service details, newest first. Offers past their expiry are transitioned
// to expired first (lazy expiration), so a missed sweep tick never surfaces a
// stale offer to the app.
func (r *OfferRepository) PendingByProvider(
	ctx context.Context,
	providerID uuid.UUID,
) ([]model.OfferWithBooking, error) {

	_, err := r.pool.Exec(ctx, `
		UPDATE offers
		SET status = 'expired'
		WHERE provider_id = $1 AND status = 'pending' AND expires_at < now()
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("offers: lazy expire for provider %s: %w", providerID, err)
	}

	rows, err := r.pool.Query(ctx, offerWithBookingQuery+`
		WHERE o.provider_id = $1 AND o.status = 'pending'
		ORDER BY o.created_at DESC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("offers: list pending for provider %s: %w", providerID, err)
	}
	defer rows.Close()

	return scanOffersWithBooking(rows)
}

// ─── Sweep queries ──────────────────────────────────────────

// ExpireStale transitions pending offers past their expiry to expired,
// touching at most limit rows, and returns the number expired. Sweep A.
func (r *OfferRepository) ExpireStale(ctx context.Context, limit int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offers
		SET status = 'expired'
		WHERE id IN (
			SELECT id FROM offers
			WHERE status = 'pending' AND expires_at < now()
			LIMIT $1
		)
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("offers: expire stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BookingsNeedingDispatch returns open bookings with no live offer: status in
// {awaiting_provider, pending}, unassigned, zero pending offers. Sweep B feeds
// each of these back through the dispatcher.
func (r *OfferRepository) BookingsNeedingDispatch(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id
		FROM bookings b
		WHERE b.status IN ('awaiting_provider', 'pending')
		  AND b.provider_id IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM offers o
			WHERE o.booking_id = b.id AND o.status = 'pending'
		  )
		ORDER BY b.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("offers: bookings needing dispatch: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ScheduledNeedingDispatch is BookingsNeedingDispatch with a service-date
// window: only bookings due before cutoff. Sweep D (hourly cadence).
func (r *OfferRepository) ScheduledNeedingDispatch(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id
		FROM bookings b
		WHERE b.status IN ('awaiting_provider', 'pending')
		  AND b.provider_id IS NULL
		  AND b.service_date <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM offers o
			WHERE o.booking_id = b.id AND o.status = 'pending'
		  )
		ORDER BY b.service_date ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("offers: scheduled needing dispatch: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// AwaitingWithPendingOffers returns live offers on bookings still waiting for
// a provider, joined with booking details. Sweep C re-fires notifications for
// these to compensate for dropped pushes; it never mutates state.
func (r *OfferRepository) AwaitingWithPendingOffers(
	ctx context.Context,
	limit int,
) ([]model.OfferWithBooking, error) {

	rows, err := r.pool.Query(ctx, offerWithBookingQuery+`
		WHERE b.status = 'awaiting_provider'
		  AND o.status = 'pending'
		  AND o.expires_at > now()
		ORDER BY o.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("offers: awaiting with pending: %w", err)
	}
	defer rows.Close()

	return scanOffersWithBooking(rows)
}

// ─── Scan helpers ───────────────────────────────────────────

const offerWithBookingQuery = `
	SELECT o.id, o.booking_id, o.provider_id, o.status, o.score,
	       o.notified_at, o.responded_at, o.expires_at, o.created_at,
	       b.booking_number, b.user_id, b.service_id, b.provider_id,
	       b.service_date, b.service_time, b.location, b.latitude, b.longitude,
	       b.pincode, b.special_instructions, b.status, b.estimated_price,
	       b.final_price, b.rating, b.review, b.provider_distance,
	       b.estimated_arrival, b.created_at, b.updated_at,
	       s.id, s.name, s.description, s.base_price, s.duration_minutes,
	       s.category_id, s.created_at
	FROM offers o
	JOIN bookings b ON b.id = o.booking_id
	LEFT JOIN services s ON s.id = b.service_id
`

func scanOffersWithBooking(rows pgx.Rows) ([]model.OfferWithBooking, error) {
	out := []model.OfferWithBooking{}
	for rows.Next() {
		var (
			item model.OfferWithBooking
			b    model.BookingWithDetails

			svcID        *uuid.UUID
			svcName      *string
			svcDesc      *string
			svcPrice     *float64
			svcDuration  *int
			svcCategory  *uuid.UUID
			svcCreatedAt *time.Time
		)
		err := rows.Scan(
			&item.ID, &item.BookingID, &item.ProviderID, &item.Status, &item.Score,
			&item.NotifiedAt, &item.RespondedAt, &item.ExpiresAt, &item.CreatedAt,
			&b.BookingNumber, &b.UserID, &b.ServiceID, &b.ProviderID,
			&b.ServiceDate, &b.ServiceTime, &b.Location, &b.Latitude, &b.Longitude,
			&b.Pincode, &b.SpecialInstructions, &b.Status, &b.EstimatedPrice,
			&b.FinalPrice, &b.Rating, &b.Review, &b.ProviderDistance,
			&b.EstimatedArrival, &b.CreatedAt, &b.UpdatedAt,
			&svcID, &svcName, &svcDesc, &svcPrice, &svcDuration,
			&svcCategory, &svcCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("offers: scan row: %w", err)
		}

		b.ID = item.BookingID
		if svcID != nil {
			b.Service = &model.Service{
				ID:              *svcID,
				Name:            *svcName,
				Description:     svcDesc,
				BasePrice:       *svcPrice,
				DurationMinutes: svcDuration,
				CategoryID:      svcCategory,
				CreatedAt:       *svcCreatedAt,
			}
		}
		item.Booking = &b
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
