// Package model contains domain models for the dispatch engine.
// These structs map to the PostgreSQL schema defined in migrations/001_init.up.sql.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ─── Enums ──────────────────────────────────────────────────

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingAwaitingProvider BookingStatus = "awaiting_provider"
	BookingConfirmed        BookingStatus = "confirmed"
	BookingInProgress       BookingStatus = "in_progress"
	BookingCompleted        BookingStatus = "completed"
	BookingCancelled        BookingStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Cancellation is allowed from every non-terminal state.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == BookingCancelled {
		return true
	}
	switch s {
	case BookingPending:
		return next == BookingAwaitingProvider
	case BookingAwaitingProvider:
		return next == BookingConfirmed || next == BookingPending
	case BookingConfirmed:
		return next == BookingInProgress
	case BookingInProgress:
		return next == BookingCompleted
	}
	return false
}

// OfferStatus is the lifecycle state of an offer. Offers are immutable once
// they leave "pending".
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// ActiveBookingStatuses are the booking states that count toward a provider's
// workload penalty in scoring.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress}

// ─── Catalog ────────────────────────────────────────────────

// ServiceCategory maps to the `service_categories` table.
type ServiceCategory struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service maps to the `services` table.
type Service struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	BasePrice       float64    `json:"base_price"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ProviderService links a provider to a service it offers, optionally with a
// per-provider price override.
type ProviderService struct {
	ID          uuid.UUID `json:"id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	ServiceID   uuid.UUID `json:"service_id"`
	CustomPrice *float64  `json:"custom_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Service     *Service  `json:"service,omitempty"`
}

// ─── People ─────────────────────────────────────────────────

// User maps to the `users` table. Authentication itself lives in the
// identity layer; this record exists for admin listings and foreign keys.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile maps to the `profiles` table (display info for a user).
type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FullName  *string   `json:"full_name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider maps to the `providers` table. One-to-one with a user.
type Provider struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	BusinessName    string    `json:"business_name"`
	Description     *string   `json:"description,omitempty"`
	Email           *string   `json:"email,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Address         *string   `json:"address,omitempty"`
	City            *string   `json:"city,omitempty"`
	Pincode         *string   `json:"pincode,omitempty"`
	Rating          *float64  `json:"rating,omitempty"`
	ExperienceYears *int      `json:"experience_years,omitempty"`
	IsAvailable     bool      `json:"is_available"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	AvatarURL       *string   `json:"avatar_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserDevice maps to the `user_devices` table (push notification targets).
type UserDevice struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	FCMToken      string    `json:"fcm_token"`
	Platform      string    `json:"platform"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// ─── Booking ────────────────────────────────────────────────

// Booking maps to the `bookings` table.
type Booking struct {
	ID                  uuid.UUID     `json:"id"`
	BookingNumber       string        `json:"booking_number"`
	UserID              uuid.UUID     `json:"user_id"`
	ServiceID           *uuid.UUID    `json:"service_id,omitempty"`
	ProviderID          *uuid.UUID    `json:"provider_id,omitempty"`
	ServiceDate         time.Time     `json:"service_date"`
	ServiceTime         string        `json:"service_time"`
	Location            string        `json:"location"`
	Latitude            *float64      `json:"latitude,omitempty"`
	Longitude           *float64      `json:"longitude,omitempty"`
	Pincode             *string       `json:"pincode,omitempty"`
	SpecialInstructions *string       `json:"special_instructions,omitempty"`
	Status              BookingStatus `json:"status"`
	EstimatedPrice      *float64      `json:"estimated_price,omitempty"`
	FinalPrice          *float64      `json:"final_price,omitempty"`
	Rating              *float64      `json:"rating,omitempty"`
	Review              *string       `json:"review,omitempty"`
	ProviderDistance    *string       `json:"provider_distance,omitempty"`
	EstimatedArrival    *string       `json:"estimated_arrival,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ValidNextStatus reports whether the booking may move to next. On top of the
// status machine, confirmed requires an assigned provider: a booking becomes
// confirmed by a winning accept, never by a bare status update. Since
// in_progress and completed are only reachable through confirmed, this keeps
// every post-confirmation state backed by a provider.
func (b *Booking) ValidNextStatus(next BookingStatus) bool {
	if !b.Status.CanTransitionTo(next) {
		return false
	}
	if next == BookingConfirmed && b.ProviderID == nil {
		return false
	}
	return true
}

// BookingWithDetails is a booking joined with its service, provider and
// customer profile for API responses.
type BookingWithDetails struct {
	Booking
	Service     *Service  `json:"service,omitempty"`
	Provider    *Provider `json:"provider,omitempty"`
	UserProfile *Profile  `json:"user_profile,omitempty"`
}

// ─── Offer ──────────────────────────────────────────────────

// Offer maps to the `offers` table: a time-bounded invitation for one
// provider to take one booking.
type Offer struct {
	ID          uuid.UUID   `json:"id"`
	BookingID   uuid.UUID   `json:"booking_id"`
	ProviderID  uuid.UUID   `json:"provider_id"`
	Status      OfferStatus `json:"status"`
	Score       float64     `json:"score"`
	NotifiedAt  *time.Time  `json:"notified_at,omitempty"`
	RespondedAt *time.Time  `json:"responded_at,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// OfferWithBooking is an offer joined with booking details for the provider's
// pending-offer listing.
type OfferWithBooking struct {
	Offer
	Booking *BookingWithDetails `json:"booking,omitempty"`
}

// ─── Dispatch DTOs ──────────────────────────────────────────

// Candidate is one scored provider produced by the candidate selector.
type Candidate struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Score      float64   `json:"score"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
}

// OfferDecision is the structured outcome of an accept/decline call. State
// conflicts (already accepted, expired, wrong owner) are expected results,
// not errors.
type OfferDecision struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}

// Stats is the admin dashboard counter set.
type Stats struct {
	TotalUsers        int64   `json:"total_users"`
	ActiveProviders   int64   `json:"active_providers"`
	PendingRequests   int64   `json:"pending_requests"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalServices     int64   `json:"total_services"`
	OngoingBookings   int64   `json:"ongoing_bookings"`
	CompletedBookings int64   `json:"completed_bookings"`
}
