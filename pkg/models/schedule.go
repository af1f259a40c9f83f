package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleItem is one item placed on one day of a plan. It is derived on every
// scheduling request and never persisted.
type ScheduleItem struct {
	ItemID               uuid.UUID `json:"item_id"`
	UserID               int64     `json:"user_id"`
	DueDate              time.Time `json:"due_date"`
	Priority             float64   `json:"priority"` // higher means more urgent
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
}

// DailySchedule summarizes the items assigned to a single calendar date.
type DailySchedule struct {
	Date                 string         `json:"schedule_date"` // YYYY-MM-DD
	UserID               int64          `json:"user_id"`
	Items                []ScheduleItem `json:"items"`
	TotalItems           int            `json:"total_items"`
	EstimatedTimeMinutes int            `json:"estimated_time_minutes"`
	NewItemsCount        int            `json:"new_items_count"`
	ReviewItemsCount     int            `json:"review_items_count"`
}

// Schedule is a user's multi-day review plan.
type Schedule struct {
	UserID             int64           `json:"user_id"`
	Days               []DailySchedule `json:"daily_schedules"`
	TotalItemsDue      int             `json:"total_items_due"`
	OverdueItemsCount  int             `json:"overdue_items_count"`
	UpcomingItemsCount int             `json:"upcoming_items_count"`
}
