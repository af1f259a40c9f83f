package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lifecycle defaults for a freshly created item.
const (
	DefaultEaseFactor   = 2.5
	DefaultIntervalDays = 1.0
)

var (
	ErrInvalidDifficulty = errors.New("models: difficulty out of range [0, 1]")
	ErrInvalidEaseFactor = errors.New("models: ease factor must be positive")
	ErrInvalidInterval   = errors.New("models: interval must not be negative")
)

// LearningItem is a single unit of material a user reviews on a schedule.
type LearningItem struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	Topic        string     `json:"topic" db:"topic"`
	Content      string     `json:"content" db:"content"`
	Question     string     `json:"question,omitempty" db:"question"`
	Answer       string     `json:"answer,omitempty" db:"answer"`
	Difficulty   float64    `json:"difficulty" db:"difficulty"`       // 0.0-1.0
	EaseFactor   float64    `json:"ease_factor" db:"ease_factor"`     // SM-2 EF parameter
	IntervalDays float64    `json:"interval_days" db:"interval_days"` // current spacing in days
	ReviewCount  int        `json:"review_count" db:"review_count"`
	NextReview   time.Time  `json:"next_review" db:"next_review"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty" db:"last_reviewed"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLearningItem creates an item due immediately with default scheduling state.
func NewLearningItem(userID int64, topic, content string, difficulty float64, now time.Time) (LearningItem, error) {
	if difficulty < 0 || difficulty > 1 {
		return LearningItem{}, fmt.Errorf("%w: %v", ErrInvalidDifficulty, difficulty)
	}
	return LearningItem{
		ID:           uuid.New(),
		UserID:       userID,
		Topic:        strings.TrimSpace(topic),
		Content:      strings.TrimSpace(content),
		Difficulty:   difficulty,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: DefaultIntervalDays,
		NextReview:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Validate checks the range invariants of an item loaded from outside the core.
func (i LearningItem) Validate() error {
	if i.Difficulty < 0 || i.Difficulty > 1 {
		return fmt.Errorf("%w: item %s has %v", ErrInvalidDifficulty, i.ID, i.Difficulty)
	}
	if i.EaseFactor <= 0 {
		return fmt.Errorf("%w: item %s has %v", ErrInvalidEaseFactor, i.ID, i.EaseFactor)
	}
	if i.IntervalDays < 0 {
		return fmt.Errorf("%w: item %s has %v", ErrInvalidInterval, i.ID, i.IntervalDays)
	}
	return nil
}

// IsNew reports whether the item has never been reviewed.
func (i LearningItem) IsNew() bool {
	return i.ReviewCount == 0
}
