package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/notify"
	"github.com/rahulm/quickserve/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────

type fakeRanker struct {
	candidates []model.Candidate
	err        error
}

func (f *fakeRanker) Rank(context.Context, *model.Booking) ([]model.Candidate, error) {
	return f.candidates, f.err
}

type fakeOfferWriter struct {
	calls    int
	got      []model.Candidate
	gotTTL   time.Duration
	created  []model.Offer
	errs     []error // per-call errors, nil entries succeed
	finalErr error
}

func (f *fakeOfferWriter) CreateOffers(
	_ context.Context,
	bookingID uuid.UUID,
	candidates []model.Candidate,
	ttl time.Duration,
) ([]model.Offer, error) {

	f.calls++
	f.got = candidates
	f.gotTTL = ttl
	if len(f.errs) >= f.calls {
		if err := f.errs[f.calls-1]; err != nil {
			return nil, err
		}
	} else if f.finalErr != nil {
		return nil, f.finalErr
	}
	return f.created, nil
}

type fakeBookingDetails struct {
	booking *model.BookingWithDetails
	err     error
}

func (f *fakeBookingDetails) GetWithDetails(context.Context, uuid.UUID) (*model.BookingWithDetails, error) {
	return f.booking, f.err
}

func pendingBookingDetails() *model.BookingWithDetails {
	return &model.BookingWithDetails{
		Booking: model.Booking{
			ID:     uuid.New(),
			UserID: uuid.New(),
			Status: model.BookingPending,
		},
	}
}

func testDispatcher(ranker *fakeRanker, writer *fakeOfferWriter, details *fakeBookingDetails) (*Dispatcher, *fakeRealtime) {
	rt := &fakeRealtime{}
	d := NewDispatcher(ranker, writer, details, notify.NopNotifier{}, rt, dispatchCfg(), zerolog.Nop())
	return d, rt
}

// ─── Dispatch ───────────────────────────────────────────────

func TestDispatch_CreatesTopNOffers(t *testing.T) {
	candidates := []model.Candidate{
		{ProviderID: uuid.New(), Score: 90},
		{ProviderID: uuid.New(), Score: 80},
		{ProviderID: uuid.New(), Score: 70},
		{ProviderID: uuid.New(), Score: 60},
		{ProviderID: uuid.New(), Score: 50},
	}
	writer := &fakeOfferWriter{created: []model.Offer{
		{ID: uuid.New(), Score: 90},
		{ID: uuid.New(), Score: 80},
		{ID: uuid.New(), Score: 70},
	}}
	d, rt := testDispatcher(&fakeRanker{candidates: candidates}, writer, &fakeBookingDetails{booking: pendingBookingDetails()})

	offers, err := d.Dispatch(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Len(t, offers, 3)
	assert.Len(t, writer.got, 3, "candidate list must be truncated to top-N")
	assert.Equal(t, candidates[:3], writer.got)
	assert.Len(t, rt.toUser, 1)
	assert.Len(t, rt.admin, 1)
}

func TestDispatch_GuardRejectionIsNoOp(t *testing.T) {
	guards := []error{
		repository.ErrOffersPending,
		repository.ErrBookingAssigned,
		repository.ErrBookingClosed,
	}

	for _, guard := range guards {
		t.Run(guard.Error(), func(t *testing.T) {
			writer := &fakeOfferWriter{finalErr: guard}
			ranker := &fakeRanker{candidates: []model.Candidate{{ProviderID: uuid.New(), Score: 50}}}
			d, rt := testDispatcher(ranker, writer, &fakeBookingDetails{booking: pendingBookingDetails()})

			offers, err := d.Dispatch(context.Background(), uuid.New())
			require.NoError(t, err, "guard rejections are clean no-ops")
			assert.Nil(t, offers)
			assert.Equal(t, 1, writer.calls, "guard errors must not be retried")
			assert.Empty(t, rt.toUser)
		})
	}
}

func TestDispatch_RetriesTransientErrors(t *testing.T) {
	writer := &fakeOfferWriter{
		errs:    []error{errors.New("timeout"), nil},
		created: []model.Offer{{ID: uuid.New(), Score: 50}},
	}
	ranker := &fakeRanker{candidates: []model.Candidate{{ProviderID: uuid.New(), Score: 50}}}
	d, _ := testDispatcher(ranker, writer, &fakeBookingDetails{booking: pendingBookingDetails()})

	offers, err := d.Dispatch(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, 2, writer.calls)
}

func TestDispatch_NoCandidates(t *testing.T) {
	writer := &fakeOfferWriter{created: []model.Offer{}}
	d, rt := testDispatcher(&fakeRanker{}, writer, &fakeBookingDetails{booking: pendingBookingDetails()})

	offers, err := d.Dispatch(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, offers)

	// The customer still learns the booking is parked.
	assert.Len(t, rt.toUser, 1)
	assert.Empty(t, rt.admin)
}

func TestDispatch_SkipsTerminalAndAssignedBookings(t *testing.T) {
	providerID := uuid.New()
	tests := []struct {
		name    string
		booking model.Booking
	}{
		{"completed", model.Booking{ID: uuid.New(), Status: model.BookingCompleted}},
		{"cancelled", model.Booking{ID: uuid.New(), Status: model.BookingCancelled}},
		{"assigned", model.Booking{ID: uuid.New(), Status: model.BookingConfirmed, ProviderID: &providerID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeOfferWriter{}
			details := &fakeBookingDetails{booking: &model.BookingWithDetails{Booking: tt.booking}}
			d, _ := testDispatcher(&fakeRanker{}, writer, details)

			offers, err := d.Dispatch(context.Background(), tt.booking.ID)
			require.NoError(t, err)
			assert.Nil(t, offers)
			assert.Zero(t, writer.calls)
		})
	}
}

func TestDispatch_BookingLoadError(t *testing.T) {
	d, _ := testDispatcher(&fakeRanker{}, &fakeOfferWriter{}, &fakeBookingDetails{err: repository.ErrBookingNotFound})

	_, err := d.Dispatch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}
