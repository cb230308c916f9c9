package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────

type fakeResolver struct {
	provider *model.Provider
	err      error
}

func (f *fakeResolver) GetByUserID(context.Context, uuid.UUID) (*model.Provider, error) {
	return f.provider, f.err
}

// fakeOfferStore mimics the store's single-winner election with a mutex: the
// first accept wins, later ones see the booking-assigned rejection.
type fakeOfferStore struct {
	mu       sync.Mutex
	pending  []model.OfferWithBooking
	booking  *model.Booking
	assigned bool
	err      error

	declined []uuid.UUID
}

func (f *fakeOfferStore) PendingByProvider(context.Context, uuid.UUID) ([]model.OfferWithBooking, error) {
	return f.pending, f.err
}

func (f *fakeOfferStore) Accept(_ context.Context, offerID, providerID uuid.UUID) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.assigned {
		return nil, repository.ErrBookingAssigned
	}
	f.assigned = true
	return f.booking, nil
}

func (f *fakeOfferStore) Decline(_ context.Context, offerID, providerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.declined = append(f.declined, offerID)
	return nil
}

type fakeRealtime struct {
	mu     sync.Mutex
	toUser []any
	admin  []any
}

func (f *fakeRealtime) SendToUser(_ uuid.UUID, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toUser = append(f.toUser, v)
}

func (f *fakeRealtime) BroadcastToAdmins(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admin = append(f.admin, v)
}

func testArbiter(store *fakeOfferStore) (*Arbiter, *fakeRealtime) {
	rt := &fakeRealtime{}
	resolver := &fakeResolver{provider: &model.Provider{ID: uuid.New(), UserID: uuid.New()}}
	return NewArbiter(resolver, store, rt, zerolog.Nop()), rt
}

// ─── Accept ─────────────────────────────────────────────────

func TestArbiterAccept_Success(t *testing.T) {
	booking := &model.Booking{ID: uuid.New(), UserID: uuid.New(), Status: model.BookingConfirmed}
	arb, rt := testArbiter(&fakeOfferStore{booking: booking})

	decision, err := arb.Accept(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)

	assert.True(t, decision.Success)
	assert.Equal(t, "Booking accepted successfully", decision.Message)
	require.NotNil(t, decision.BookingID)
	assert.Equal(t, booking.ID, *decision.BookingID)

	// Customer and admins both get the confirmation event.
	assert.Len(t, rt.toUser, 1)
	assert.Len(t, rt.admin, 1)
}

func TestArbiterAccept_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"offer missing", repository.ErrOfferNotFound, "Assignment not found"},
		{"not the owner", repository.ErrOfferNotOwned, "Unauthorized"},
		{"already accepted", &repository.OfferStateError{Status: model.OfferAccepted}, "Assignment already accepted"},
		{"already declined", &repository.OfferStateError{Status: model.OfferDeclined}, "Assignment already declined"},
		{"expired", repository.ErrOfferExpired, "Assignment has expired"},
		{"booking missing", repository.ErrBookingNotFound, "Booking not found"},
		{"booking taken", repository.ErrBookingAssigned, "Booking already assigned to another provider"},
		{"booking closed", repository.ErrBookingClosed, "Booking is no longer active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arb, rt := testArbiter(&fakeOfferStore{err: tt.err})

			decision, err := arb.Accept(context.Background(), uuid.New(), uuid.New())
			require.NoError(t, err, "state conflicts must not surface as errors")

			assert.False(t, decision.Success)
			assert.Equal(t, tt.wantMsg, decision.Error)
			assert.Empty(t, rt.toUser)
		})
	}
}

func TestArbiterAccept_InfrastructureError(t *testing.T) {
	arb, _ := testArbiter(&fakeOfferStore{err: errors.New("connection reset")})

	decision, err := arb.Accept(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Nil(t, decision)
}

func TestArbiterAccept_SingleWinner(t *testing.T) {
	booking := &model.Booking{ID: uuid.New(), UserID: uuid.New()}
	store := &fakeOfferStore{booking: booking}
	arb, _ := testArbiter(store)

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := arb.Accept(context.Background(), uuid.New(), uuid.New())
			if err == nil && decision.Success {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one accept may win the booking")
}

// ─── Decline ────────────────────────────────────────────────

func TestArbiterDecline_Success(t *testing.T) {
	store := &fakeOfferStore{}
	arb, _ := testArbiter(store)
	offerID := uuid.New()

	decision, err := arb.Decline(context.Background(), uuid.New(), offerID)
	require.NoError(t, err)

	assert.True(t, decision.Success)
	assert.Equal(t, "Assignment declined", decision.Message)
	assert.Equal(t, []uuid.UUID{offerID}, store.declined)
}

func TestArbiterDecline_Conflict(t *testing.T) {
	arb, _ := testArbiter(&fakeOfferStore{err: repository.ErrOfferNotOwned})

	decision, err := arb.Decline(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, decision.Success)
	assert.Equal(t, "Unauthorized", decision.Error)
}

// ─── ListPending ────────────────────────────────────────────

func TestArbiterListPending_ResolvesProvider(t *testing.T) {
	pending := []model.OfferWithBooking{{Offer: model.Offer{ID: uuid.New()}}}
	arb, _ := testArbiter(&fakeOfferStore{pending: pending})

	got, err := arb.ListPending(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, pending, got)
}

func TestArbiterListPending_NotAProvider(t *testing.T) {
	store := &fakeOfferStore{}
	rt := &fakeRealtime{}
	resolver := &fakeResolver{err: repository.ErrProviderNotFound}
	arb := NewArbiter(resolver, store, rt, zerolog.Nop())

	_, err := arb.ListPending(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrProviderNotFound)
}
