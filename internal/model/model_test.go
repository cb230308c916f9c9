package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestBookingStatus_Terminal(t *testing.T) {
	terminal := []BookingStatus{BookingCompleted, BookingCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}

	live := []BookingStatus{BookingPending, BookingAwaitingProvider, BookingConfirmed, BookingInProgress}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingAwaitingProvider, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingConfirmed, false},
		{BookingPending, BookingCompleted, false},

		{BookingAwaitingProvider, BookingConfirmed, true},
		{BookingAwaitingProvider, BookingPending, true},
		{BookingAwaitingProvider, BookingCancelled, true},
		{BookingAwaitingProvider, BookingInProgress, false},

		{BookingConfirmed, BookingInProgress, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingCompleted, false},
		{BookingConfirmed, BookingPending, false},

		{BookingInProgress, BookingCompleted, true},
		{BookingInProgress, BookingCancelled, true},
		{BookingInProgress, BookingConfirmed, false},

		{BookingCompleted, BookingCancelled, false},
		{BookingCompleted, BookingPending, false},
		{BookingCancelled, BookingPending, false},
		{BookingCancelled, BookingAwaitingProvider, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestBooking_ValidNextStatus_ConfirmedNeedsProvider(t *testing.T) {
	unassigned := Booking{Status: BookingAwaitingProvider}
	if unassigned.ValidNextStatus(BookingConfirmed) {
		t.Error("awaiting_provider -> confirmed allowed with no assigned provider")
	}

	providerID := uuid.New()
	assigned := Booking{Status: BookingAwaitingProvider, ProviderID: &providerID}
	if !assigned.ValidNextStatus(BookingConfirmed) {
		t.Error("awaiting_provider -> confirmed rejected despite assigned provider")
	}
}

func TestBooking_ValidNextStatus_OtherTransitionsUnaffected(t *testing.T) {
	// Cancellation and the pending flows never require a provider.
	unassigned := Booking{Status: BookingAwaitingProvider}
	if !unassigned.ValidNextStatus(BookingCancelled) {
		t.Error("awaiting_provider -> cancelled rejected for unassigned booking")
	}
	if !unassigned.ValidNextStatus(BookingPending) {
		t.Error("awaiting_provider -> pending rejected for unassigned booking")
	}

	pending := Booking{Status: BookingPending}
	if !pending.ValidNextStatus(BookingAwaitingProvider) {
		t.Error("pending -> awaiting_provider rejected")
	}

	// The status machine still applies underneath.
	if pending.ValidNextStatus(BookingCompleted) {
		t.Error("pending -> completed allowed")
	}
}
