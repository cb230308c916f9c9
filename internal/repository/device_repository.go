package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahulm/quickserve/internal/model"
)

// DeviceRepository handles push-notification device registrations.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a new device repository.
func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

// Upsert registers an FCM token for a user. Tokens are unique per device, so
// a token seen again is re-bound to the calling user (app reinstall, login on
// a shared device).
func (r *DeviceRepository) Upsert(ctx context.Context, d *model.UserDevice) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_devices (id, user_id, fcm_token, platform, last_updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (fcm_token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    platform = EXCLUDED.platform,
		    last_updated_at = now()
		RETURNING id, created_at, last_updated_at
	`, d.ID, d.UserID, d.FCMToken, d.Platform).Scan(&d.ID, &d.CreatedAt, &d.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("devices: upsert for user %s: %w", d.UserID, err)
	}
	return nil
}

// TokensByUser returns all FCM tokens registered for a user.
func (r *DeviceRepository) TokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fcm_token FROM user_devices WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("devices: tokens for user %s: %w", userID, err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("devices: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
