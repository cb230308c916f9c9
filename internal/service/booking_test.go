package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
	"github.com/rahulm/quickserve/pkg/geocode"
)

// ─── Fakes ──────────────────────────────────────────────────

type fakeBookingStore struct {
	mu      sync.Mutex
	created *model.Booking
	details *model.BookingWithDetails
	err     error
}

func (f *fakeBookingStore) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = b
	f.details = &model.BookingWithDetails{Booking: *b}
	return nil
}

func (f *fakeBookingStore) GetWithDetails(context.Context, uuid.UUID) (*model.BookingWithDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

func (f *fakeBookingStore) ListByUser(context.Context, uuid.UUID, *model.BookingStatus, int, int) ([]model.BookingWithDetails, error) {
	return nil, f.err
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, _ uuid.UUID, next model.BookingStatus, _ uuid.UUID, _ bool) (*model.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{Status: next}, nil
}

func (f *fakeBookingStore) Rate(context.Context, uuid.UUID, uuid.UUID, float64, *string) (*model.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{}, nil
}

type fakeServiceCatalog struct {
	service *model.Service
	err     error
}

func (f *fakeServiceCatalog) GetService(context.Context, uuid.UUID) (*model.Service, error) {
	return f.service, f.err
}

type fakeGeocoder struct {
	result *geocode.Result
	err    error
	called bool
}

func (f *fakeGeocoder) Resolve(context.Context, string) (*geocode.Result, error) {
	f.called = true
	return f.result, f.err
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(_ context.Context, bookingID uuid.UUID) ([]model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bookingID)
	return nil, nil
}

func testBookingService(store *fakeBookingStore, catalog *fakeServiceCatalog, geocoder *fakeGeocoder) *BookingService {
	return NewBookingService(store, catalog, geocoder, &fakeDispatcher{}, &fakeRealtime{}, zerolog.Nop())
}

func createInput() CreateBookingInput {
	return CreateBookingInput{
		ServiceID:   uuid.New(),
		ServiceDate: time.Now().AddDate(0, 0, 1),
		ServiceTime: "10:00 AM",
		Location:    "Connaught Place, New Delhi",
		Latitude:    ptrF(28.6315),
		Longitude:   ptrF(77.2167),
	}
}

// ─── Create ─────────────────────────────────────────────────

func TestBookingCreate_DefaultsPriceFromService(t *testing.T) {
	store := &fakeBookingStore{}
	catalog := &fakeServiceCatalog{service: &model.Service{ID: uuid.New(), Name: "Plumbing", BasePrice: 499}}
	svc := testBookingService(store, catalog, &fakeGeocoder{})

	got, err := svc.Create(context.Background(), uuid.New(), createInput())
	require.NoError(t, err)

	require.NotNil(t, got.EstimatedPrice)
	assert.Equal(t, 499.0, *got.EstimatedPrice)
	assert.Equal(t, model.BookingPending, got.Status)
	require.NotNil(t, got.ProviderDistance)
	assert.Equal(t, "Finding providers...", *got.ProviderDistance)
}

func TestBookingCreate_KeepsExplicitPrice(t *testing.T) {
	store := &fakeBookingStore{}
	catalog := &fakeServiceCatalog{service: &model.Service{ID: uuid.New(), BasePrice: 499}}
	svc := testBookingService(store, catalog, &fakeGeocoder{})

	in := createInput()
	in.EstimatedPrice = ptrF(999)

	got, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, 999.0, *got.EstimatedPrice)
}

func TestBookingCreate_GeocodesWhenCoordinatesMissing(t *testing.T) {
	store := &fakeBookingStore{}
	catalog := &fakeServiceCatalog{service: &model.Service{ID: uuid.New()}}
	geocoder := &fakeGeocoder{result: &geocode.Result{
		Latitude:  28.64,
		Longitude: 77.22,
		Postcode:  ptrS("110001"),
	}}
	svc := testBookingService(store, catalog, geocoder)

	in := createInput()
	in.Latitude, in.Longitude = nil, nil

	got, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)

	assert.True(t, geocoder.called)
	require.NotNil(t, got.Latitude)
	assert.Equal(t, 28.64, *got.Latitude)
	require.NotNil(t, got.Pincode)
	assert.Equal(t, "110001", *got.Pincode)
}

func TestBookingCreate_GeocodeFailureIsNotFatal(t *testing.T) {
	store := &fakeBookingStore{}
	catalog := &fakeServiceCatalog{service: &model.Service{ID: uuid.New()}}
	geocoder := &fakeGeocoder{err: context.DeadlineExceeded}
	svc := testBookingService(store, catalog, geocoder)

	in := createInput()
	in.Latitude, in.Longitude = nil, nil

	got, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	assert.Nil(t, got.Latitude)
}

func TestBookingCreate_SkipsGeocodingWithCoordinates(t *testing.T) {
	store := &fakeBookingStore{}
	catalog := &fakeServiceCatalog{service: &model.Service{ID: uuid.New()}}
	geocoder := &fakeGeocoder{}
	svc := testBookingService(store, catalog, geocoder)

	_, err := svc.Create(context.Background(), uuid.New(), createInput())
	require.NoError(t, err)
	assert.False(t, geocoder.called)
}

func TestBookingCreate_UnknownService(t *testing.T) {
	svc := testBookingService(&fakeBookingStore{}, &fakeServiceCatalog{err: repository.ErrServiceNotFound}, &fakeGeocoder{})

	_, err := svc.Create(context.Background(), uuid.New(), createInput())
	assert.ErrorIs(t, err, repository.ErrServiceNotFound)
}

// ─── Get / Rate / UpdateStatus ──────────────────────────────

func TestBookingGet_OwnershipCheck(t *testing.T) {
	owner := uuid.New()
	providerUser := uuid.New()
	details := &model.BookingWithDetails{
		Booking:  model.Booking{ID: uuid.New(), UserID: owner},
		Provider: &model.Provider{ID: uuid.New(), UserID: providerUser},
	}
	store := &fakeBookingStore{details: details}
	svc := testBookingService(store, &fakeServiceCatalog{}, &fakeGeocoder{})

	// Owner, assigned provider's user, and admin can read.
	for _, tc := range []struct {
		name   string
		caller uuid.UUID
		admin  bool
	}{
		{"owner", owner, false},
		{"assigned provider", providerUser, false},
		{"admin", uuid.New(), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Get(context.Background(), tc.caller, tc.admin, details.ID)
			assert.NoError(t, err)
		})
	}

	// A stranger cannot.
	_, err := svc.Get(context.Background(), uuid.New(), false, details.ID)
	assert.ErrorIs(t, err, repository.ErrBookingNotOwned)
}

func TestBookingRate_RejectsOutOfRange(t *testing.T) {
	svc := testBookingService(&fakeBookingStore{}, &fakeServiceCatalog{}, &fakeGeocoder{})

	for _, rating := range []float64{0, 0.5, 5.5, -1} {
		_, err := svc.Rate(context.Background(), uuid.New(), uuid.New(), rating, nil)
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %v", rating)
	}

	_, err := svc.Rate(context.Background(), uuid.New(), uuid.New(), 4.5, nil)
	assert.NoError(t, err)
}

func TestBookingUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	svc := testBookingService(&fakeBookingStore{}, &fakeServiceCatalog{}, &fakeGeocoder{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), false, uuid.New(), "teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBookingList_RejectsUnknownStatusFilter(t *testing.T) {
	svc := testBookingService(&fakeBookingStore{}, &fakeServiceCatalog{}, &fakeGeocoder{})

	bad := "nope"
	_, err := svc.List(context.Background(), uuid.New(), &bad, 0, 50)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// ─── Booking number ─────────────────────────────────────────

func TestNewBookingNumber_Format(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^BK260824[A-Z0-9]{4}$`)

	for i := 0; i < 100; i++ {
		got := NewBookingNumber(now)
		if !pattern.MatchString(got) {
			t.Fatalf("NewBookingNumber() = %q, want match for %s", got, pattern)
		}
	}
}

func TestNewBookingNumber_MostlyUnique(t *testing.T) {
	now := time.Now().UTC()
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		seen[NewBookingNumber(now)] = true
	}
	// 4 random chars over a 36-symbol alphabet: the odd collision is fine,
	// wholesale repetition is not.
	if len(seen) < 900 {
		t.Errorf("got %d distinct numbers out of 1000", len(seen))
	}
}
