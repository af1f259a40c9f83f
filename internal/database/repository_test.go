package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/reviewplanner/pkg/models"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(Config{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, id int64) {
	t.Helper()
	users := NewUserRepository(db)
	if err := users.Upsert(context.Background(), &models.User{ID: id, Username: "u", NotificationHour: 9, NotificationEnabled: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func seedItem(t *testing.T, repo *ItemRepository, userID int64, topic string, due time.Time) models.LearningItem {
	t.Helper()
	item, err := models.NewLearningItem(userID, topic, "content "+topic, 0.5, due)
	if err != nil {
		t.Fatalf("NewLearningItem: %v", err)
	}
	if err := repo.Create(context.Background(), &item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "mysql", DSN: "x"})
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("err = %v, want ErrUnsupportedDriver", err)
	}
}

func TestItemRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1)
	repo := NewItemRepository(db)
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	item := seedItem(t, repo, 1, "go", due)

	got, err := repo.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Content != item.Content || got.Topic != "go" {
		t.Errorf("got %+v", got)
	}
	if !got.NextReview.Equal(due) {
		t.Errorf("NextReview = %v, want %v", got.NextReview, due)
	}
	if got.LastReviewed != nil {
		t.Errorf("LastReviewed = %v, want nil", got.LastReviewed)
	}

	reviewed := due.Add(time.Hour)
	got.ReviewCount = 1
	got.IntervalDays = 6
	got.EaseFactor = 2.6
	got.LastReviewed = &reviewed
	got.NextReview = reviewed.Add(6 * 24 * time.Hour)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	again, err := repo.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ReviewCount != 1 || again.IntervalDays != 6 || again.EaseFactor != 2.6 {
		t.Errorf("update not persisted: %+v", again)
	}
	if again.LastReviewed == nil || !again.LastReviewed.Equal(reviewed) {
		t.Errorf("LastReviewed = %v, want %v", again.LastReviewed, reviewed)
	}
}

func TestItemRepositoryNotFound(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1)
	repo := NewItemRepository(db)

	item, _ := models.NewLearningItem(1, "", "missing", 0.2, time.Now())
	if _, err := repo.GetByID(context.Background(), item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("GetByID err = %v, want ErrItemNotFound", err)
	}
	if err := repo.Update(context.Background(), &item); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Update err = %v, want ErrItemNotFound", err)
	}
}

func TestItemRepositoryListDueAndTopics(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1)
	seedUser(t, db, 2)
	repo := NewItemRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	seedItem(t, repo, 1, "math", base.Add(48*time.Hour))
	seedItem(t, repo, 1, "go", base.Add(2*time.Hour))
	seedItem(t, repo, 1, "go", base.Add(-24*time.Hour))
	seedItem(t, repo, 2, "art", base)

	due, err := repo.ListDue(ctx, 1, base.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 {
		t.Fatalf("ListDue returned %d items, want 2", len(due))
	}
	if !due[0].NextReview.Before(due[1].NextReview) {
		t.Errorf("ListDue not ordered by next_review: %v, %v", due[0].NextReview, due[1].NextReview)
	}

	all, err := repo.ListByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("ListByUser returned %d items, want 3", len(all))
	}

	topics, err := repo.ListTopics(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 || topics[0] != "go" || topics[1] != "math" {
		t.Errorf("topics = %v, want [go math]", topics)
	}
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetByID err = %v, want ErrUserNotFound", err)
	}

	user := &models.User{ID: 42, Username: "alice", NotificationHour: 9, NotificationEnabled: true}
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatal(err)
	}
	if user.ItemsPerDay != models.DefaultItemsPerDay {
		t.Errorf("ItemsPerDay = %d, want default", user.ItemsPerDay)
	}

	if err := repo.UpdateSettings(ctx, 42, 5, 18, true); err != nil {
		t.Fatal(err)
	}
	// Upsert again must keep the preferences.
	if err := repo.Upsert(ctx, &models.User{ID: 42, Username: "alice2"}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice2" || got.ItemsPerDay != 5 || got.NotificationHour != 18 || !got.NotificationEnabled {
		t.Errorf("got %+v", got)
	}

	if err := repo.UpdateSettings(ctx, 7, 5, 18, true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateSettings unknown user err = %v", err)
	}
	if err := repo.UpdateSettings(ctx, 42, 0, 18, true); err == nil {
		t.Error("UpdateSettings accepted zero items per day")
	}

	if err := repo.Upsert(ctx, &models.User{ID: 43, NotificationHour: 18}); err != nil {
		t.Fatal(err)
	}
	users, err := repo.ListForNotification(ctx, 18)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != 42 {
		t.Errorf("ListForNotification = %+v, want only user 42", users)
	}
}

func TestReviewLogRepositoryStats(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1)
	items := NewItemRepository(db)
	logs := NewReviewLogRepository(db)
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a := seedItem(t, items, 1, "go", now.Add(-time.Hour))
	b := seedItem(t, items, 1, "go", now.Add(72*time.Hour))

	b.ReviewCount = 6
	b.IntervalDays = 40
	b.Difficulty = 0.2
	if err := items.Update(ctx, &b); err != nil {
		t.Fatal(err)
	}

	for i, q := range []int{5, 3} {
		entry := &models.ReviewLog{
			ItemID:       a.ID,
			UserID:       1,
			Quality:      q,
			ReviewedAt:   now.Add(time.Duration(-i) * 24 * time.Hour),
			EaseFactor:   2.5,
			IntervalDays: 1,
			Difficulty:   0.5,
		}
		if err := logs.Create(ctx, entry); err != nil {
			t.Fatal(err)
		}
		if entry.ID == 0 {
			t.Error("Create did not set ID")
		}
	}
	old := &models.ReviewLog{ItemID: a.ID, UserID: 1, Quality: 0, ReviewedAt: now.Add(-30 * 24 * time.Hour), EaseFactor: 2.5}
	if err := logs.Create(ctx, old); err != nil {
		t.Fatal(err)
	}

	history, err := logs.ListByItem(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 || history[0].Quality != 0 {
		t.Errorf("history = %+v, want 3 entries oldest first", history)
	}

	stats, err := logs.Stats(ctx, 1, now.Add(12*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 2 || stats.DueToday != 1 || stats.Mastered != 1 {
		t.Errorf("item stats = %+v", stats)
	}
	if stats.ReviewsLast7Days != 2 || stats.AverageQuality != 4 {
		t.Errorf("review stats = %+v", stats)
	}
	if stats.AverageEaseFactor != 2.5 {
		t.Errorf("AverageEaseFactor = %v, want 2.5", stats.AverageEaseFactor)
	}
}

func TestReviewLogRepositoryStatsEmpty(t *testing.T) {
	db := newTestDB(t)
	stats, err := NewReviewLogRepository(db).Stats(context.Background(), 99, time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if *stats != (models.ReviewStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestItemRepositoryRecordReview(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1)
	items := NewItemRepository(db)
	logs := NewReviewLogRepository(db)
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	item := seedItem(t, items, 1, "go", now)

	reviewed := item
	reviewed.ReviewCount = 1
	reviewed.LastReviewed = &now
	reviewed.NextReview = now.Add(24 * time.Hour)
	entry := &models.ReviewLog{ItemID: item.ID, UserID: 1, Quality: 4, ReviewedAt: now, EaseFactor: 2.5, IntervalDays: 1, Difficulty: 0.45}
	if err := items.RecordReview(ctx, &reviewed, entry); err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if entry.ID == 0 {
		t.Error("RecordReview did not set the log ID")
	}

	// A log row that violates a foreign key rolls back the item update too.
	again := reviewed
	again.ReviewCount = 2
	bad := &models.ReviewLog{ItemID: item.ID, UserID: 999, Quality: 4, ReviewedAt: now, EaseFactor: 2.5}
	if err := items.RecordReview(ctx, &again, bad); err == nil {
		t.Fatal("RecordReview accepted a log for an unknown user")
	}

	stored, err := items.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ReviewCount != 1 {
		t.Errorf("ReviewCount = %d after rolled back review, want 1", stored.ReviewCount)
	}
	history, err := logs.ListByItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d entries, want 1", len(history))
	}
}
