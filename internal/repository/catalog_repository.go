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

var ErrServiceNotFound = errors.New("service not found")

// CatalogRepository handles the service catalog: categories and services.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ─── Categories ─────────────────────────────────────────────

// ListCategories returns all service categories.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]model.ServiceCategory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, icon, created_at
		FROM service_categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	defer rows.Close()

	out := []model.ServiceCategory{}
	for rows.Next() {
		c := model.ServiceCategory{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category. Admin surface.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c *model.ServiceCategory) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO service_categories (id, name, description, icon)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, c.ID, c.Name, c.Description, c.Icon).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert category %q: %w", c.Name, err)
	}
	return nil
}

// ─── Services ───────────────────────────────────────────────

const serviceColumns = `id, name, description, base_price, duration_minutes, category_id, created_at`

// ListServices returns services, optionally filtered by category.
func (r *CatalogRepository) ListServices(ctx context.Context, categoryID *uuid.UUID) ([]model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	args := []any{}
	if categoryID != nil {
		query += ` WHERE category_id = $1`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		s := model.Service{}
		err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.BasePrice,
			&s.DurationMinutes, &s.CategoryID, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetService fetches a service by id.
func (r *CatalogRepository) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	s := &model.Service{}
	err := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.Description, &s.BasePrice,
		&s.DurationMinutes, &s.CategoryID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: get service %s: %w", id, err)
	}
	return s, nil
}

// CreateService inserts a service. Admin surface.
func (r *CatalogRepository) CreateService(ctx context.Context, s *model.Service) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, description, base_price, duration_minutes, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.Name, s.Description, s.BasePrice, s.DurationMinutes, s.CategoryID).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert service %q: %w", s.Name, err)
	}
	return nil
}

// UpdateService overwrites a service's mutable fields. Admin surface.
func (r *CatalogRepository) UpdateService(ctx context.Context, s *model.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $2, description = $3, base_price = $4,
		    duration_minutes = $5, category_id = $6
		WHERE id = $1
	`, s.ID, s.Name, s.Description, s.BasePrice, s.DurationMinutes, s.CategoryID)
	if err != nil {
		return fmt.Errorf("catalog: update service %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// DeleteService removes a service. Admin surface.
func (r *CatalogRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete service %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}
