package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/reviewplanner/pkg/models"
)

const userColumns = `id, username, first_name, items_per_day, notification_hour,
	notification_enabled, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert registers a user on first contact and refreshes their names later.
// Preferences of an existing user are left untouched.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ItemsPerDay <= 0 {
		user.ItemsPerDay = models.DefaultItemsPerDay
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.ItemsPerDay,
		user.NotificationHour,
		user.NotificationEnabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID returns a user by Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateSettings changes the review preferences of a user
func (r *UserRepository) UpdateSettings(ctx context.Context, id int64, itemsPerDay, notificationHour int, enabled bool) error {
	if itemsPerDay <= 0 {
		return fmt.Errorf("items per day must be positive, got %d", itemsPerDay)
	}
	if notificationHour < 0 || notificationHour > 23 {
		return fmt.Errorf("notification hour must be between 0 and 23, got %d", notificationHour)
	}
	query := r.db.Rebind(`
		UPDATE users SET
			items_per_day = ?,
			notification_hour = ?,
			notification_enabled = ?,
			updated_at = ?
		WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, itemsPerDay, notificationHour, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return nil
}

// ListForNotification returns users who want reminders at the given hour
func (r *UserRepository) ListForNotification(ctx context.Context, hour int) ([]models.User, error) {
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE notification_enabled = ? AND notification_hour = ?
		ORDER BY id`)
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
