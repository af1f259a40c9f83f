package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/reviewplanner/pkg/models"
)

const itemColumns = `id, user_id, topic, content, question, answer, difficulty, ease_factor,
	interval_days, review_count, next_review, last_reviewed, created_at, updated_at`

// ItemRepository handles database operations for learning items
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new repository instance
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new learning item
func (r *ItemRepository) Create(ctx context.Context, item *models.LearningItem) error {
	normalizeItemTimes(item)
	query := r.db.Rebind(`
		INSERT INTO learning_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.Topic,
		item.Content,
		item.Question,
		item.Answer,
		item.Difficulty,
		item.EaseFactor,
		item.IntervalDays,
		item.ReviewCount,
		item.NextReview,
		item.LastReviewed,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create learning item: %w", err)
	}
	return nil
}

// Update stores the scheduling state of an existing item
func (r *ItemRepository) Update(ctx context.Context, item *models.LearningItem) error {
	return updateItem(ctx, r.db, item)
}

// RecordReview stores the new scheduling state of an item together with the
// review that produced it. Either both writes happen or neither does.
func (r *ItemRepository) RecordReview(ctx context.Context, item *models.LearningItem, entry *models.ReviewLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := updateItem(ctx, tx, item); err != nil {
		tx.Rollback()
		return err
	}
	if err := insertReviewLog(ctx, tx, entry); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

func updateItem(ctx context.Context, db sqlx.ExtContext, item *models.LearningItem) error {
	normalizeItemTimes(item)
	query := db.Rebind(`
		UPDATE learning_items SET
			topic = ?,
			difficulty = ?,
			ease_factor = ?,
			interval_days = ?,
			review_count = ?,
			next_review = ?,
			last_reviewed = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?`)
	result, err := db.ExecContext(ctx, query,
		item.Topic,
		item.Difficulty,
		item.EaseFactor,
		item.IntervalDays,
		item.ReviewCount,
		item.NextReview,
		item.LastReviewed,
		item.UpdatedAt,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learning item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	return nil
}

// GetByID returns a single item
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningItem, error) {
	var item models.LearningItem
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM learning_items WHERE id = ?`)
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to get learning item: %w", err)
	}
	return &item, nil
}

// ListByUser returns all items of a user ordered by due time
func (r *ItemRepository) ListByUser(ctx context.Context, userID int64) ([]models.LearningItem, error) {
	query := r.db.Rebind(`
		SELECT ` + itemColumns + `
		FROM learning_items
		WHERE user_id = ?
		ORDER BY next_review ASC`)
	items := []models.LearningItem{}
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list learning items: %w", err)
	}
	return items, nil
}

// ListDue returns the items of a user that fall due before until
func (r *ItemRepository) ListDue(ctx context.Context, userID int64, until time.Time) ([]models.LearningItem, error) {
	query := r.db.Rebind(`
		SELECT ` + itemColumns + `
		FROM learning_items
		WHERE user_id = ? AND next_review < ?
		ORDER BY next_review ASC`)
	items := []models.LearningItem{}
	if err := r.db.SelectContext(ctx, &items, query, userID, until.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get due items: %w", err)
	}
	return items, nil
}

// ListTopics returns the distinct topics of a user
func (r *ItemRepository) ListTopics(ctx context.Context, userID int64) ([]string, error) {
	query := r.db.Rebind(`
		SELECT DISTINCT topic FROM learning_items
		WHERE user_id = ? AND topic <> ''
		ORDER BY topic`)
	topics := []string{}
	if err := r.db.SelectContext(ctx, &topics, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// Timestamps are stored in UTC so that text comparison in SQLite matches
// chronological order.
func normalizeItemTimes(item *models.LearningItem) {
	item.NextReview = item.NextReview.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if item.LastReviewed != nil {
		last := item.LastReviewed.UTC()
		item.LastReviewed = &last
	}
}
