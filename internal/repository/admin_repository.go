package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahulm/quickserve/internal/model"
)

// AdminRepository serves the admin dashboard counters.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new admin repository.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// Stats returns the dashboard counter set in a single round trip. Revenue is
// the sum of final prices on completed bookings.
func (r *AdminRepository) Stats(ctx context.Context) (*model.Stats, error) {
	s := &model.Stats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM providers WHERE is_available = true),
			(SELECT COUNT(*) FROM bookings WHERE status IN ('pending', 'awaiting_provider')),
			(SELECT COALESCE(SUM(final_price), 0) FROM bookings WHERE status = 'completed'),
			(SELECT COUNT(*) FROM services),
			(SELECT COUNT(*) FROM bookings WHERE status IN ('confirmed', 'in_progress')),
			(SELECT COUNT(*) FROM bookings WHERE status = 'completed')
	`).Scan(
		&s.TotalUsers, &s.ActiveProviders, &s.PendingRequests, &s.TotalRevenue,
		&s.TotalServices, &s.OngoingBookings, &s.CompletedBookings,
	)
	if err != nil {
		return nil, fmt.Errorf("admin: stats: %w", err)
	}
	return s, nil
}

// ListUsers returns a page of users, newest first.
func (r *AdminRepository) ListUsers(ctx context.Context, skip, limit int) ([]model.User, error) {
	skip, limit = clampPage(skip, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, email, full_name, is_admin, created_at
		FROM users
		ORDER BY created_at DESC
		OFFSET %d LIMIT %d
	`, skip, limit))
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u := model.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("admin: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
