package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLog records one processed review together with the state it produced.
type ReviewLog struct {
	ID           int64     `json:"id" db:"id"`
	ItemID       uuid.UUID `json:"item_id" db:"item_id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	Quality      int       `json:"quality" db:"quality"` // 0-5 rating of recall
	ReviewedAt   time.Time `json:"reviewed_at" db:"reviewed_at"`
	EaseFactor   float64   `json:"ease_factor" db:"ease_factor"`
	IntervalDays float64   `json:"interval_days" db:"interval_days"`
	Difficulty   float64   `json:"difficulty" db:"difficulty"`
}

// ReviewStats aggregates a user's collection and review history.
type ReviewStats struct {
	TotalItems        int     `json:"total_items" db:"total_items"`
	DueToday          int     `json:"due_today" db:"due_today"`
	Mastered          int     `json:"mastered" db:"mastered"`
	AverageEaseFactor float64 `json:"avg_ease_factor" db:"avg_ease_factor"`
	ReviewsLast7Days  int     `json:"reviews_last_7_days" db:"reviews_last_7_days"`
	AverageQuality    float64 `json:"avg_quality" db:"avg_quality"`
}
