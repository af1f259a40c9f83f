package models

import "time"

// Defaults applied to users created on first contact.
const (
	DefaultItemsPerDay      = 20
	DefaultNotificationHour = 9
)

// User represents a Telegram user with their review preferences
type User struct {
	ID                  int64     `json:"id" db:"id"` // Telegram User ID
	Username            string    `json:"username" db:"username"`
	FirstName           string    `json:"first_name" db:"first_name"`
	ItemsPerDay         int       `json:"items_per_day" db:"items_per_day"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for notifications (0-23)
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
