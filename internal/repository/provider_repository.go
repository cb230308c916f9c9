package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahulm/quickserve/internal/model"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrProviderNotFound = errors.New("provider profile not found")
	ErrProviderExists   = errors.New("provider profile already exists for user")
	ErrServiceLinkDup   = errors.New("provider already offers this service")
	ErrServiceLinkGone  = errors.New("provider service link not found")
)

// ─── ProviderRepository ─────────────────────────────────────

// ProviderRepository handles provider profiles, provider-service links, and
// the batch eligibility queries the candidate selector runs per booking.
type ProviderRepository struct {
	pool *pgxpool.Pool
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(pool *pgxpool.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

const providerColumns = `
	id, user_id, business_name, description, email, phone, address,
	city, pincode, rating, experience_years, is_available,
	latitude, longitude, avatar_url, created_at, updated_at
`

// ─── CRUD ───────────────────────────────────────────────────

// Create inserts a new provider profile. One profile per user.
func (r *ProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM providers WHERE user_id = $1)`, p.UserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("providers: check existing for user %s: %w", p.UserID, err)
	}
	if exists {
		return ErrProviderExists
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO providers (
			id, user_id, business_name, description, email, phone, address,
			city, pincode, rating, experience_years, is_available,
			latitude, longitude, avatar_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`,
		p.ID, p.UserID, p.BusinessName, p.Description, p.Email, p.Phone,
		p.Address, p.City, p.Pincode, p.Rating, p.ExperienceYears,
		p.IsAvailable, p.Latitude, p.Longitude, p.AvatarURL,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("providers: insert for user %s: %w", p.UserID, err)
	}
	return nil
}

// GetByID fetches a provider by its id.
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	return scanProviderRow(row)
}

// GetByUserID resolves a user to their provider profile. Provider endpoints
// reject callers without one.
func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Provider, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE user_id = $1`, userID)
	return scanProviderRow(row)
}

// Update overwrites the mutable profile fields.
func (r *ProviderRepository) Update(ctx context.Context, p *model.Provider) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET business_name = $2, description = $3, email = $4, phone = $5,
		    address = $6, city = $7, pincode = $8, experience_years = $9,
		    is_available = $10, latitude = $11, longitude = $12,
		    avatar_url = $13, updated_at = now()
		WHERE id = $1
	`,
		p.ID, p.BusinessName, p.Description, p.Email, p.Phone, p.Address,
		p.City, p.Pincode, p.ExperienceYears, p.IsAvailable,
		p.Latitude, p.Longitude, p.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("providers: update %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// List returns a page of providers, optionally only the available ones.
func (r *ProviderRepository) List(
	ctx context.Context,
	onlyAvailable bool,
	skip, limit int,
) ([]model.Provider, error) {

	skip, limit = clampPage(skip, limit)

	query := `SELECT ` + providerColumns + ` FROM providers`
	if onlyAvailable {
		query += ` WHERE is_available = true`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC OFFSET %d LIMIT %d`, skip, limit)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("providers: list: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// ─── Selector eligibility queries ───────────────────────────

// EligibleForService returns available providers linked to the service via
// provider_services. One batch query, no per-provider roundtrips.
func (r *ProviderRepository) EligibleForService(
	ctx context.Context,
	serviceID uuid.UUID,
) ([]model.Provider, error) {

	rows, err := r.pool.Query(ctx, `
		SELECT `+prefixedProviderColumns+`
		FROM providers p
		JOIN provider_services ps ON ps.provider_id = p.id
		WHERE ps.service_id = $1 AND p.is_available = true
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("providers: eligible for service %s: %w", serviceID, err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// AllAvailable returns every available provider regardless of service links.
// The selector falls back to this when no linked provider exists.
func (r *ProviderRepository) AllAvailable(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE is_available = true
	`)
	if err != nil {
		return nil, fmt.Errorf("providers: all available: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// ActiveBookingCounts returns, per provider, the number of bookings in
// pending, confirmed or in_progress. Single grouped query over the batch.
func (r *ProviderRepository) ActiveBookingCounts(
	ctx context.Context,
	providerIDs []uuid.UUID,
) (map[uuid.UUID]int, error) {

	counts := make(map[uuid.UUID]int, len(providerIDs))
	if len(providerIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, COUNT(*)::int
		FROM bookings
		WHERE provider_id = ANY($1)
		  AND status IN ('pending', 'confirmed', 'in_progress')
		GROUP BY provider_id
	`, providerIDs)
	if err != nil {
		return nil, fmt.Errorf("providers: active booking counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("providers: scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// ─── Provider-service links ─────────────────────────────────

// AddServiceLink links the provider to a service, optionally with a custom
// price.
func (r *ProviderRepository) AddServiceLink(ctx context.Context, link *model.ProviderService) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_services
			WHERE provider_id = $1 AND service_id = $2
		)
	`, link.ProviderID, link.ServiceID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("providers: check service link: %w", err)
	}
	if exists {
		return ErrServiceLinkDup
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO provider_services (id, provider_id, service_id, custom_price)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, link.ID, link.ProviderID, link.ServiceID, link.CustomPrice).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("providers: insert service link: %w", err)
	}
	return nil
}

// ListServiceLinks returns the provider's offered services with details.
func (r *ProviderRepository) ListServiceLinks(
	ctx context.Context,
	providerID uuid.UUID,
) ([]model.ProviderService, error) {

	rows, err := r.pool.Query(ctx, `
		SELECT ps.id, ps.provider_id, ps.service_id, ps.custom_price, ps.created_at,
		       s.id, s.name, s.description, s.base_price, s.duration_minutes,
		       s.category_id, s.created_at
		FROM provider_services ps
		JOIN services s ON s.id = ps.service_id
		WHERE ps.provider_id = $1
		ORDER BY ps.created_at DESC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("providers: list service links for %s: %w", providerID, err)
	}
	defer rows.Close()

	links := []model.ProviderService{}
	for rows.Next() {
		var (
			link model.ProviderService
			svc  model.Service
		)
		err := rows.Scan(
			&link.ID, &link.ProviderID, &link.ServiceID, &link.CustomPrice, &link.CreatedAt,
			&svc.ID, &svc.Name, &svc.Description, &svc.BasePrice,
			&svc.DurationMinutes, &svc.CategoryID, &svc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("providers: scan service link: %w", err)
		}
		link.Service = &svc
		links = append(links, link)
	}
	return links, rows.Err()
}

// UpdateServiceLinkPrice sets or clears the custom price on a link.
func (r *ProviderRepository) UpdateServiceLinkPrice(
	ctx context.Context,
	providerID, linkID uuid.UUID,
	customPrice *float64,
) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE provider_services
		SET custom_price = $3
		WHERE id = $1 AND provider_id = $2
	`, linkID, providerID, customPrice)
	if err != nil {
		return fmt.Errorf("providers: update service link %s: %w", linkID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceLinkGone
	}
	return nil
}

// RemoveServiceLink unlinks a service from the provider.
func (r *ProviderRepository) RemoveServiceLink(
	ctx context.Context,
	providerID, linkID uuid.UUID,
) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM provider_services
		WHERE id = $1 AND provider_id = $2
	`, linkID, providerID)
	if err != nil {
		return fmt.Errorf("providers: remove service link %s: %w", linkID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceLinkGone
	}
	return nil
}

// ─── Scan helpers ───────────────────────────────────────────

const prefixedProviderColumns = `
	p.id, p.user_id, p.business_name, p.description, p.email, p.phone,
	p.address, p.city, p.pincode, p.rating, p.experience_years,
	p.is_available, p.latitude, p.longitude, p.avatar_url,
	p.created_at, p.updated_at
`

func scanProviderRow(row pgx.Row) (*model.Provider, error) {
	p := &model.Provider{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.BusinessName, &p.Description, &p.Email, &p.Phone,
		&p.Address, &p.City, &p.Pincode, &p.Rating, &p.ExperienceYears,
		&p.IsAvailable, &p.Latitude, &p.Longitude, &p.AvatarURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("providers: scan: %w", err)
	}
	return p, nil
}

func scanProviders(rows pgx.Rows) ([]model.Provider, error) {
	out := []model.Provider{}
	for rows.Next() {
		p := model.Provider{}
		err := rows.Scan(
			&p.ID, &p.UserID, &p.BusinessName, &p.Description, &p.Email, &p.Phone,
			&p.Address, &p.City, &p.Pincode, &p.Rating, &p.ExperienceYears,
			&p.IsAvailable, &p.Latitude, &p.Longitude, &p.AvatarURL,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("providers: scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
