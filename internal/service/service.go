package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/example/reviewplanner/internal/cache"
	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/scheduler"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
	"github.com/example/reviewplanner/pkg/models"
)

var (
	ErrForbidden      = errors.New("service: item belongs to another user")
	ErrInvalidRequest = errors.New("service: invalid request")
)

// ItemStore persists learning items.
type ItemStore interface {
	Create(ctx context.Context, item *models.LearningItem) error
	RecordReview(ctx context.Context, item *models.LearningItem, entry *models.ReviewLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningItem, error)
	ListByUser(ctx context.Context, userID int64) ([]models.LearningItem, error)
	ListDue(ctx context.Context, userID int64, until time.Time) ([]models.LearningItem, error)
	ListTopics(ctx context.Context, userID int64) ([]string, error)
}

// UserStore persists users and their preferences.
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateSettings(ctx context.Context, id int64, itemsPerDay, notificationHour int, enabled bool) error
}

// ReviewLogStore reads review history.
type ReviewLogStore interface {
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.ReviewLog, error)
	Stats(ctx context.Context, userID int64, dueBefore, since time.Time) (*models.ReviewStats, error)
}

// Options holds the fallbacks used when a request leaves a field empty.
type Options struct {
	MaxItemsPerDay int
	PlanDays       int
}

// Service coordinates the interval engine, the planner and storage.
type Service struct {
	items   ItemStore
	users   UserStore
	logs    ReviewLogStore
	engine  *sr.SM2
	planner *scheduler.Planner
	cache   cache.PlanCache
	opts    Options
	log     logrus.FieldLogger
	locks   *itemLocks
	now     func() time.Time
}

// New creates the service. A nil cache disables plan caching.
func New(items ItemStore, users UserStore, logs ReviewLogStore, engine *sr.SM2, planner *scheduler.Planner, planCache cache.PlanCache, opts Options, log logrus.FieldLogger) *Service {
	if planCache == nil {
		planCache = cache.Noop{}
	}
	if opts.MaxItemsPerDay <= 0 {
		opts.MaxItemsPerDay = models.DefaultItemsPerDay
	}
	if opts.PlanDays <= 0 {
		opts.PlanDays = 7
	}
	return &Service{
		items:   items,
		users:   users,
		logs:    logs,
		engine:  engine,
		planner: planner,
		cache:   planCache,
		opts:    opts,
		log:     log.WithField("component", "service"),
		locks:   newItemLocks(),
		now:     time.Now,
	}
}

// RegisterUser records a user on first contact.
func (s *Service) RegisterUser(ctx context.Context, user *models.User) error {
	if err := s.users.Upsert(ctx, user); err != nil {
		return err
	}
	s.log.WithField("user_id", user.ID).Debug("user registered")
	return nil
}

// User returns a registered user.
func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateSettings changes a user's daily capacity and reminder preferences.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, itemsPerDay, notificationHour int, enabled bool) error {
	if err := s.users.UpdateSettings(ctx, userID, itemsPerDay, notificationHour, enabled); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// AddItemRequest describes a new learning item.
type AddItemRequest struct {
	UserID     int64
	Topic      string
	Content    string
	Question   string
	Answer     string
	Difficulty float64
}

// AddItem creates an item that is due immediately.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*models.LearningItem, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	item, err := s.engine.NewItem(req.UserID, req.Topic, req.Content, req.Difficulty, s.now())
	if err != nil {
		return nil, err
	}
	item.Question = strings.TrimSpace(req.Question)
	item.Answer = strings.TrimSpace(req.Answer)
	if err := s.items.Create(ctx, &item); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.UserID)
	s.log.WithFields(logrus.Fields{"user_id": req.UserID, "item_id": item.ID}).Debug("item added")
	return &item, nil
}

// Item returns an item owned by userID.
func (s *Service) Item(ctx context.Context, userID int64, itemID uuid.UUID) (*models.LearningItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, itemID)
	}
	return item, nil
}

// Review scores one recall of an item and stores the new schedule. Reviews of
// the same item are processed one at a time.
func (s *Service) Review(ctx context.Context, userID int64, itemID uuid.UUID, quality sr.Quality) (*models.LearningItem, error) {
	if !quality.IsValid() {
		return nil, fmt.Errorf("%w: %d", sr.ErrInvalidQuality, int(quality))
	}

	unlock := s.locks.Lock(itemID)
	defer unlock()

	item, err := s.Item(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.engine.ApplyReview(*item, quality, now)
	if err != nil {
		return nil, err
	}
	entry := &models.ReviewLog{
		ItemID:       updated.ID,
		UserID:       userID,
		Quality:      int(quality),
		ReviewedAt:   now,
		EaseFactor:   updated.EaseFactor,
		IntervalDays: updated.IntervalDays,
		Difficulty:   updated.Difficulty,
	}
	err = s.items.RecordReview(ctx, &updated, entry)
	s.invalidate(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"item_id":     itemID,
		"quality":     quality.String(),
		"next_review": updated.NextReview,
		"interval":    updated.IntervalDays,
	}).Info("review recorded")
	return &updated, nil
}

// History returns the reviews of an item owned by userID.
func (s *Service) History(ctx context.Context, userID int64, itemID uuid.UUID) ([]models.ReviewLog, error) {
	if _, err := s.Item(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.logs.ListByItem(ctx, itemID)
}

// PlanRequest selects the days and items of a plan. Zero values fall back to
// today, the configured plan length and the user's daily capacity.
type PlanRequest struct {
	UserID         int64
	From           time.Time
	Days           int
	MaxItemsPerDay int
	Topics         []string
}

// Plan builds a user's review plan for [From, From+Days).
func (s *Service) Plan(ctx context.Context, req PlanRequest) (models.Schedule, error) {
	now := s.now()
	if req.Days < 0 || req.MaxItemsPerDay < 0 {
		return models.Schedule{}, fmt.Errorf("%w: days=%d max_items_per_day=%d", ErrInvalidRequest, req.Days, req.MaxItemsPerDay)
	}
	if req.From.IsZero() {
		req.From = now
	}
	if req.Days == 0 {
		req.Days = s.opts.PlanDays
	}
	if req.MaxItemsPerDay == 0 {
		capacity, err := s.userCapacity(ctx, req.UserID)
		if err != nil {
			return models.Schedule{}, err
		}
		req.MaxItemsPerDay = capacity
	}

	variant := planVariant(s.planner.DateKey(req.From), req)
	if cached, ok, err := s.cache.Get(ctx, req.UserID, variant); err != nil {
		s.log.WithError(err).WithField("user_id", req.UserID).Warn("plan cache read failed")
	} else if ok {
		return cached, nil
	}

	until := s.planner.StartOfDay(req.From).AddDate(0, 0, req.Days)
	due, err := s.items.ListDue(ctx, req.UserID, until)
	if err != nil {
		return models.Schedule{}, err
	}
	due = scheduler.FilterByTopic(due, req.Topics)

	plan, err := s.planner.ScheduleFrom(due, req.UserID, req.MaxItemsPerDay, req.From, now)
	if err != nil {
		return models.Schedule{}, err
	}
	schedule := s.planner.Summarize(s.planner.Window(plan, req.From, req.Days), due, req.UserID, now)

	if err := s.cache.Set(ctx, req.UserID, variant, schedule); err != nil {
		s.log.WithError(err).WithField("user_id", req.UserID).Warn("plan cache write failed")
	}
	s.log.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"days":    len(schedule.Days),
		"items":   schedule.TotalItemsDue,
	}).Debug("plan built")
	return schedule, nil
}

// TodayPlan returns today's part of the user's plan. It satisfies
// scheduler.PlanSource.
func (s *Service) TodayPlan(ctx context.Context, user models.User) (models.DailySchedule, error) {
	now := s.now()
	schedule, err := s.Plan(ctx, PlanRequest{
		UserID:         user.ID,
		From:           now,
		Days:           1,
		MaxItemsPerDay: user.ItemsPerDay,
	})
	if err != nil {
		return models.DailySchedule{}, err
	}
	today := s.planner.DateKey(now)
	day, ok := lo.Find(schedule.Days, func(d models.DailySchedule) bool { return d.Date == today })
	if !ok {
		return models.DailySchedule{Date: today, UserID: user.ID, Items: []models.ScheduleItem{}}, nil
	}
	return day, nil
}

// Due returns up to limit items that are due now, most urgent first.
// A limit of zero returns all of them.
func (s *Service) Due(ctx context.Context, userID int64, limit int) ([]models.LearningItem, error) {
	now := s.now()
	items, err := s.items.ListDue(ctx, userID, now.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := scheduler.Priority(items[i], now), scheduler.Priority(items[j], now)
		if pi != pj {
			return pi > pj
		}
		return items[i].NextReview.Before(items[j].NextReview)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Items returns every item of a user, earliest due first.
func (s *Service) Items(ctx context.Context, userID int64) ([]models.LearningItem, error) {
	return s.items.ListByUser(ctx, userID)
}

// Topics lists the topics a user has items in.
func (s *Service) Topics(ctx context.Context, userID int64) ([]string, error) {
	return s.items.ListTopics(ctx, userID)
}

// Stats summarizes a user's collection and the last week of reviews.
func (s *Service) Stats(ctx context.Context, userID int64) (*models.ReviewStats, error) {
	now := s.now()
	endOfToday := s.planner.StartOfDay(now).AddDate(0, 0, 1)
	return s.logs.Stats(ctx, userID, endOfToday, now.AddDate(0, 0, -7))
}

func (s *Service) userCapacity(ctx context.Context, userID int64) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrUserNotFound) {
		return s.opts.MaxItemsPerDay, nil
	}
	if err != nil {
		return 0, err
	}
	if user.ItemsPerDay > 0 {
		return user.ItemsPerDay, nil
	}
	return s.opts.MaxItemsPerDay, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("plan cache invalidation failed")
	}
}

func planVariant(from string, req PlanRequest) string {
	topics := lo.Uniq(lo.Map(req.Topics, func(t string, _ int) string {
		return strings.ToLower(strings.TrimSpace(t))
	}))
	sort.Strings(topics)
	return fmt.Sprintf("%s/%d/%d/%s", from, req.Days, req.MaxItemsPerDay, strings.Join(topics, ","))
}
