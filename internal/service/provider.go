package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/model"
	"github.com/rahulm/quickserve/internal/repository"
	"github.com/rahulm/quickserve/pkg/geocode"
)

// ProviderService owns provider self-registration and profile management.
// Address changes are geocoded best-effort so the selector can use real
// distances; a failed lookup leaves coordinates null, which the scoring
// rules tolerate.
type ProviderService struct {
	repo     *repository.ProviderRepository
	geocoder geocode.Geocoder
	log      zerolog.Logger
}

// NewProviderService creates a provider service.
func NewProviderService(repo *repository.ProviderRepository, geocoder geocode.Geocoder, log zerolog.Logger) *ProviderService {
	return &ProviderService{repo: repo, geocoder: geocoder, log: log}
}

// ProviderProfileInput carries the editable profile fields. Nil pointers on
// update mean "leave unchanged".
type ProviderProfileInput struct {
	BusinessName    *string
	Description     *string
	Email           *string
	Phone           *string
	Address         *string
	City            *string
	Pincode         *string
	ExperienceYears *int
	IsAvailable     *bool
	AvatarURL       *string
}

// Register creates the caller's provider profile. One per user.
func (s *ProviderService) Register(
	ctx context.Context,
	userID uuid.UUID,
	in ProviderProfileInput,
) (*model.Provider, error) {

	p := &model.Provider{
		ID:              uuid.New(),
		UserID:          userID,
		Description:     in.Description,
		Email:           in.Email,
		Phone:           in.Phone,
		Address:         in.Address,
		City:            in.City,
		Pincode:         in.Pincode,
		ExperienceYears: in.ExperienceYears,
		IsAvailable:     true,
		AvatarURL:       in.AvatarURL,
	}
	if in.BusinessName != nil {
		p.BusinessName = *in.BusinessName
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}

	s.geocodeAddress(ctx, p)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("provider_id", p.ID.String()).
		Str("user_id", userID.String()).
		Msg("provider registered")
	return p, nil
}

// GetOwn returns the caller's provider profile.
func (s *ProviderService) GetOwn(ctx context.Context, userID uuid.UUID) (*model.Provider, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpdateOwn applies the non-nil fields to the caller's profile. A changed
// address is re-geocoded.
func (s *ProviderService) UpdateOwn(
	ctx context.Context,
	userID uuid.UUID,
	in ProviderProfileInput,
) (*model.Provider, error) {

	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	addressChanged := false
	if in.Address != nil && (p.Address == nil || *p.Address != *in.Address) {
		addressChanged = true
	}
	if in.City != nil && (p.City == nil || *p.City != *in.City) {
		addressChanged = true
	}

	if in.BusinessName != nil {
		p.BusinessName = *in.BusinessName
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Email != nil {
		p.Email = in.Email
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
	if in.Address != nil {
		p.Address = in.Address
	}
	if in.City != nil {
		p.City = in.City
	}
	if in.Pincode != nil {
		p.Pincode = in.Pincode
	}
	if in.ExperienceYears != nil {
		p.ExperienceYears = in.ExperienceYears
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	if in.AvatarURL != nil {
		p.AvatarURL = in.AvatarURL
	}

	if addressChanged {
		s.geocodeAddress(ctx, p)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProviderService) geocodeAddress(ctx context.Context, p *model.Provider) {
	parts := []string{}
	if p.Address != nil && *p.Address != "" {
		parts = append(parts, *p.Address)
	}
	if p.City != nil && *p.City != "" {
		parts = append(parts, *p.City)
	}
	if p.Pincode != nil && *p.Pincode != "" {
		parts = append(parts, *p.Pincode)
	}
	if len(parts) == 0 {
		return
	}

	gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	result, err := s.geocoder.Resolve(gctx, strings.Join(parts, ", "))
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("provider_id", p.ID.String()).
			Msg("provider geocoding failed")
		return
	}
	if result == nil {
		return
	}
	p.Latitude = &result.Latitude
	p.Longitude = &result.Longitude
	if p.Pincode == nil && result.Postcode != nil {
		p.Pincode = result.Postcode
	}
}
