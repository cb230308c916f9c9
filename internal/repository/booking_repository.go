// Package repository provides PostgreSQL access for the dispatch engine.
//
// All multi-row mutations (winner election, cancellation, rating) run inside
// transactions with pessimistic locking (SELECT ... FOR UPDATE) to prevent
// race conditions between concurrent providers and the reconciliation sweeps.
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
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingNotOwned     = errors.New("booking belongs to another user")
	ErrInvalidTransition   = errors.New("booking status transition not allowed")
	ErrBookingNotCompleted = errors.New("booking is not completed")
)

// MaxPageSize caps list pagination. Requests asking for more get clamped.
const MaxPageSize = 100

// ─── BookingRepository ──────────────────────────────────────

// BookingRepository handles booking persistence and the transactional
// lifecycle operations (status transitions, cancellation, rating).
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ─── Create / read ──────────────────────────────────────────

// Create inserts a new booking. ID, booking number, status and display fields
// are expected to be set by the caller; timestamps come from the database.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, booking_number, user_id, service_id, provider_id,
			service_date, service_time, location, latitude, longitude,
			pincode, special_instructions, status, estimated_price,
			provider_distance
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`,
		b.ID, b.BookingNumber, b.UserID, b.ServiceID, b.ProviderID,
		b.ServiceDate, b.ServiceTime, b.Location, b.Latitude, b.Longitude,
		b.Pincode, b.SpecialInstructions, b.Status, b.EstimatedPrice,
		b.ProviderDistance,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert %s: %w", b.BookingNumber, err)
	}
	return nil
}

const bookingColumns = `
	id, booking_number, user_id, service_id, provider_id,
	service_date, service_time, location, latitude, longitude,
	pincode, special_instructions, status, estimated_price,
	final_price, rating, review, provider_distance,
	estimated_arrival, created_at, updated_at
`

// GetByID fetches a booking by id.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get %s: %w", id, err)
	}
	return b, nil
}

// GetWithDetails fetches a booking joined with its service and provider.
func (r *BookingRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*model.BookingWithDetails, error) {
	rows, err := r.pool.Query(ctx, bookingDetailsQuery+` WHERE b.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("bookings: get details %s: %w", id, err)
	}
	defer rows.Close()

	list, err := scanBookingsWithDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrBookingNotFound
	}
	return &list[0], nil
}

// ListByUser returns a page of the user's bookings, newest first, optionally
// filtered by status.
func (r *BookingRepository) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	status *model.BookingStatus,
	skip, limit int,
) ([]model.BookingWithDetails, error) {

	skip, limit = clampPage(skip, limit)

	query := bookingDetailsQuery + ` WHERE b.user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND b.status = $2`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY b.created_at DESC OFFSET %d LIMIT %d`, skip, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list for user %s: %w", userID, err)
	}
	defer rows.Close()

	return scanBookingsWithDetails(rows)
}

// ListByProvider returns a page of the provider's assigned bookings, newest
// first.
func (r *BookingRepository) ListByProvider(
	ctx context.Context,
	providerID uuid.UUID,
	skip, limit int,
) ([]model.BookingWithDetails, error) {

	skip, limit = clampPage(skip, limit)

	rows, err := r.pool.Query(ctx, bookingDetailsQuery+
		fmt.Sprintf(` WHERE b.provider_id = $1 ORDER BY b.created_at DESC OFFSET %d LIMIT %d`, skip, limit),
		providerID)
	if err != nil {
		return nil, fmt.Errorf("bookings: list for provider %s: %w", providerID, err)
	}
	defer rows.Close()

	return scanBookingsWithDetails(rows)
}

// ListAll returns a page of all bookings, newest first. Admin surface.
func (r *BookingRepository) ListAll(
	ctx context.Context,
	status *model.BookingStatus,
	skip, limit int,
) ([]model.BookingWithDetails, error) {

	skip, limit = clampPage(skip, limit)

	query := bookingDetailsQuery
	args := []any{}
	if status != nil {
		query += ` WHERE b.status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY b.created_at DESC OFFSET %d LIMIT %d`, skip, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list all: %w", err)
	}
	defer rows.Close()

	return scanBookingsWithDetails(rows)
}

// ─── Status transitions ─────────────────────────────────────

// UpdateStatus moves a booking to the next status under the state-machine
// rules. The actor must be the booking's owner, its assigned provider's user,
// or an admin. Cancellation additionally declines every pending offer for the
// booking in the same transaction, so a cancelled booking can never be won.
func (r *BookingRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	next model.BookingStatus,
	actorUserID uuid.UUID,
	admin bool,
) (*model.Booking, error) {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: LOCK the booking ────────────────────────
	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: lock %s: %w", id, err)
	}

	// ── Step 2: Authorize the actor ─────────────────────
	if !admin && b.UserID != actorUserID {
		ok, err := r.actorIsAssignedProvider(ctx, tx, b, actorUserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBookingNotOwned
		}
	}

	// ── Step 3: Validate the transition ─────────────────
	// ValidNextStatus also rejects confirmed without an assigned provider;
	// confirmation only ever happens through a winning accept.
	if !b.ValidNextStatus(next) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, b.Status, next)
	}

	// ── Step 4: Apply ───────────────────────────────────
	_, err = tx.Exec(ctx, `
		UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1
	`, id, next)
	if err != nil {
		return nil, fmt.Errorf("bookings: update %s: %w", id, err)
	}

	// Cancellation releases the offer queue.
	if next == model.BookingCancelled {
		_, err = tx.Exec(ctx, `
			UPDATE offers
			SET status = 'declined', responded_at = now()
			WHERE booking_id = $1 AND status = 'pending'
		`, id)
		if err != nil {
			return nil, fmt.Errorf("bookings: decline offers for %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit: %w", err)
	}

	b.Status = next
	return b, nil
}

func (r *BookingRepository) actorIsAssignedProvider(
	ctx context.Context,
	tx pgx.Tx,
	b *model.Booking,
	actorUserID uuid.UUID,
) (bool, error) {
	if b.ProviderID == nil {
		return false, nil
	}
	var providerUserID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT user_id FROM providers WHERE id = $1`, *b.ProviderID).Scan(&providerUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("bookings: resolve provider user: %w", err)
	}
	return providerUserID == actorUserID, nil
}

// ─── Rating ─────────────────────────────────────────────────

// Rate stores the customer's rating and review on a completed booking and
// recomputes the provider's rolling rating as the mean of all non-null
// booking ratings. Both writes commit in one transaction.
func (r *BookingRepository) Rate(
	ctx context.Context,
	id uuid.UUID,
	userID uuid.UUID,
	rating float64,
	review *string,
) (*model.Booking, error) {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("rate: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("rate: lock booking %s: %w", id, err)
	}

	if b.UserID != userID {
		return nil, ErrBookingNotOwned
	}
	if b.Status != model.BookingCompleted {
		return nil, ErrBookingNotCompleted
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings SET rating = $2, review = $3, updated_at = now() WHERE id = $1
	`, id, rating, review)
	if err != nil {
		return nil, fmt.Errorf("rate: update booking %s: %w", id, err)
	}

	if b.ProviderID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE providers
			SET rating = (
				SELECT AVG(rating)
				FROM bookings
				WHERE provider_id = $1 AND rating IS NOT NULL
			),
			updated_at = now()
			WHERE id = $1
		`, *b.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("rate: update provider %s rating: %w", *b.ProviderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rate: commit: %w", err)
	}

	b.Rating = &rating
	b.Review = review
	return b, nil
}

// ─── Scan helpers ───────────────────────────────────────────

const bookingDetailsQuery = `
	SELECT b.id, b.booking_number, b.user_id, b.service_id, b.provider_id,
	       b.service_date, b.service_time, b.location, b.latitude, b.longitude,
	       b.pincode, b.special_instructions, b.status, b.estimated_price,
	       b.final_price, b.rating, b.review, b.provider_distance,
	       b.estimated_arrival, b.created_at, b.updated_at,
	       s.id, s.name, s.description, s.base_price, s.duration_minutes,
	       s.category_id, s.created_at,
	       p.id, p.user_id, p.business_name, p.phone, p.rating,
	       p.latitude, p.longitude, p.avatar_url
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id
	LEFT JOIN providers p ON p.id = b.provider_id
`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	b := &model.Booking{}
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ServiceID, &b.ProviderID,
		&b.ServiceDate, &b.ServiceTime, &b.Location, &b.Latitude, &b.Longitude,
		&b.Pincode, &b.SpecialInstructions, &b.Status, &b.EstimatedPrice,
		&b.FinalPrice, &b.Rating, &b.Review, &b.ProviderDistance,
		&b.EstimatedArrival, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanBookingsWithDetails(rows pgx.Rows) ([]model.BookingWithDetails, error) {
	out := []model.BookingWithDetails{}
	for rows.Next() {
		var (
			b model.BookingWithDetails

			svcID        *uuid.UUID
			svcName      *string
			svcDesc      *string
			svcPrice     *float64
			svcDuration  *int
			svcCategory  *uuid.UUID
			svcCreatedAt *time.Time

			provID     *uuid.UUID
			provUserID *uuid.UUID
			provName   *string
			provPhone  *string
			provRating *float64
			provLat    *float64
			provLon    *float64
			provAvatar *string
		)
		err := rows.Scan(
			&b.ID, &b.BookingNumber, &b.UserID, &b.ServiceID, &b.ProviderID,
			&b.ServiceDate, &b.ServiceTime, &b.Location, &b.Latitude, &b.Longitude,
			&b.Pincode, &b.SpecialInstructions, &b.Status, &b.EstimatedPrice,
			&b.FinalPrice, &b.Rating, &b.Review, &b.ProviderDistance,
			&b.EstimatedArrival, &b.CreatedAt, &b.UpdatedAt,
			&svcID, &svcName, &svcDesc, &svcPrice, &svcDuration,
			&svcCategory, &svcCreatedAt,
			&provID, &provUserID, &provName, &provPhone, &provRating,
			&provLat, &provLon, &provAvatar,
		)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}

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
		if provID != nil {
			b.Provider = &model.Provider{
				ID:           *provID,
				UserID:       *provUserID,
				BusinessName: *provName,
				Phone:        provPhone,
				Rating:       provRating,
				Latitude:     provLat,
				Longitude:    provLon,
				AvatarURL:    provAvatar,
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return skip, limit
}
