package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/reviewplanner/pkg/models"
)

// Mastery thresholds used by Stats; they mirror SM2.IsMastered.
const (
	masteredMinReviews    = 5
	masteredMinInterval   = 30
	masteredMaxDifficulty = 0.3
)

// ReviewLogRepository handles database operations for review history
type ReviewLogRepository struct {
	db *sqlx.DB
}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository(db *sqlx.DB) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

// Create appends a review to the log
func (r *ReviewLogRepository) Create(ctx context.Context, entry *models.ReviewLog) error {
	return insertReviewLog(ctx, r.db, entry)
}

func insertReviewLog(ctx context.Context, db sqlx.ExtContext, entry *models.ReviewLog) error {
	entry.ReviewedAt = entry.ReviewedAt.UTC()
	query := db.Rebind(`
		INSERT INTO review_logs (
			item_id, user_id, quality, reviewed_at, ease_factor, interval_days, difficulty
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := db.QueryRowxContext(ctx, query,
		entry.ItemID,
		entry.UserID,
		entry.Quality,
		entry.ReviewedAt,
		entry.EaseFactor,
		entry.IntervalDays,
		entry.Difficulty,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create review log: %w", err)
	}
	return nil
}

// ListByItem returns the review history of an item, oldest first
func (r *ReviewLogRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.ReviewLog, error) {
	query := r.db.Rebind(`
		SELECT id, item_id, user_id, quality, reviewed_at, ease_factor, interval_days, difficulty
		FROM review_logs
		WHERE item_id = ?
		ORDER BY reviewed_at ASC, id ASC`)
	logs := []models.ReviewLog{}
	if err := r.db.SelectContext(ctx, &logs, query, itemID); err != nil {
		return nil, fmt.Errorf("failed to list review logs: %w", err)
	}
	return logs, nil
}

// Stats returns statistics about a user's collection. Items due before
// dueBefore count as due today; reviews at or after since count as recent.
func (r *ReviewLogRepository) Stats(ctx context.Context, userID int64, dueBefore, since time.Time) (*models.ReviewStats, error) {
	var stats models.ReviewStats

	itemQuery := r.db.Rebind(`
		SELECT
			COUNT(*) AS total_items,
			COALESCE(SUM(CASE WHEN next_review < ? THEN 1 ELSE 0 END), 0) AS due_today,
			COALESCE(SUM(CASE WHEN review_count >= ? AND interval_days >= ? AND difficulty <= ? THEN 1 ELSE 0 END), 0) AS mastered,
			COALESCE(AVG(ease_factor), 0) AS avg_ease_factor
		FROM learning_items
		WHERE user_id = ?`)
	row := r.db.QueryRowxContext(ctx, itemQuery,
		dueBefore.UTC(), masteredMinReviews, masteredMinInterval, masteredMaxDifficulty, userID)
	if err := row.Scan(&stats.TotalItems, &stats.DueToday, &stats.Mastered, &stats.AverageEaseFactor); err != nil {
		return nil, fmt.Errorf("failed to get item statistics: %w", err)
	}

	reviewQuery := r.db.Rebind(`
		SELECT
			COUNT(*) AS reviews_last_7_days,
			COALESCE(AVG(quality), 0) AS avg_quality
		FROM review_logs
		WHERE user_id = ? AND reviewed_at >= ?`)
	row = r.db.QueryRowxContext(ctx, reviewQuery, userID, since.UTC())
	if err := row.Scan(&stats.ReviewsLast7Days, &stats.AverageQuality); err != nil {
		return nil, fmt.Errorf("failed to get review statistics: %w", err)
	}

	return &stats, nil
}
