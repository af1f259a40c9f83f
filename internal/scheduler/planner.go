package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/example/reviewplanner/pkg/models"
)

// DateLayout is the key format of plan buckets.
const DateLayout = "2006-01-02"

const (
	DefaultMaxLookaheadDays = 365

	baseReviewSeconds  = 30
	extraReviewSeconds = 60
	overdueSaturation  = 7.0
	upcomingWindowDays = 7
	day                = 24 * time.Hour
)

var (
	ErrInvalidCapacity   = errors.New("scheduler: max items per day must be positive")
	ErrLookaheadExceeded = errors.New("scheduler: no free day within lookahead window")
	ErrInvalidDifficulty = fmt.Errorf("scheduler: %w", models.ErrInvalidDifficulty)
)

// PlannerConfig bounds the day scheduler.
type PlannerConfig struct {
	// MaxLookaheadDays caps how far past its due date an item may overflow.
	MaxLookaheadDays int
	// Location decides which calendar date a timestamp falls on.
	Location *time.Location
}

// Plan maps a calendar date (YYYY-MM-DD) to the items assigned to it, in
// assignment order.
type Plan map[string][]models.ScheduleItem

// Dates returns the populated dates in ascending order.
func (p Plan) Dates() []string {
	dates := lo.Keys(p)
	sort.Strings(dates)
	return dates
}

// Len returns the number of scheduled entries across all days.
func (p Plan) Len() int {
	return lo.SumBy(lo.Values(p), func(items []models.ScheduleItem) int { return len(items) })
}

// Planner distributes due items over calendar days without exceeding a daily
// capacity. It holds no mutable state and is safe for concurrent use.
type Planner struct {
	maxLookahead int
	loc          *time.Location
}

// NewPlanner creates a Planner; zero values fall back to defaults.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	lookahead := cfg.MaxLookaheadDays
	if lookahead == 0 {
		lookahead = DefaultMaxLookaheadDays
	}
	if lookahead < 0 {
		return nil, fmt.Errorf("scheduler: max lookahead days %d must be positive", lookahead)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{maxLookahead: lookahead, loc: loc}, nil
}

// Location returns the time zone used for date bucketing.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// DateKey returns the bucket key for t.
func (p *Planner) DateKey(t time.Time) string {
	return t.In(p.loc).Format(DateLayout)
}

// StartOfDay returns local midnight of the day containing t.
func (p *Planner) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

// ScheduleItems assigns every item to a day no earlier than its own due date,
// earliest due first and harder first among equals. Full days push items
// forward one day at a time; no item is dropped.
func (p *Planner) ScheduleItems(items []models.LearningItem, userID int64, maxItemsPerDay int, now time.Time) (Plan, error) {
	return p.schedule(items, userID, maxItemsPerDay, time.Time{}, now)
}

// ScheduleFrom works like ScheduleItems but never places an item before the
// day containing from: items that are already overdue by then queue up on
// that first day. DueDate and Priority still reflect the real due time.
func (p *Planner) ScheduleFrom(items []models.LearningItem, userID int64, maxItemsPerDay int, from, now time.Time) (Plan, error) {
	return p.schedule(items, userID, maxItemsPerDay, p.StartOfDay(from), now)
}

func (p *Planner) schedule(items []models.LearningItem, userID int64, maxItemsPerDay int, floor, now time.Time) (Plan, error) {
	if maxItemsPerDay <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, maxItemsPerDay)
	}
	plan := make(Plan)
	if len(items) == 0 {
		return plan, nil
	}
	for _, it := range items {
		if it.Difficulty < 0 || it.Difficulty > 1 {
			return nil, fmt.Errorf("%w: item %s has %v", ErrInvalidDifficulty, it.ID, it.Difficulty)
		}
	}

	sorted := make([]models.LearningItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].NextReview.Equal(sorted[j].NextReview) {
			return sorted[i].NextReview.Before(sorted[j].NextReview)
		}
		return sorted[i].Difficulty > sorted[j].Difficulty
	})

	for _, it := range sorted {
		date := p.StartOfDay(it.NextReview)
		if !floor.IsZero() && date.Before(floor) {
			date = floor
		}
		key := date.Format(DateLayout)
		for shifted := 0; len(plan[key]) >= maxItemsPerDay; shifted++ {
			if shifted >= p.maxLookahead {
				return nil, fmt.Errorf("%w: item %s due %s overflowed %d days", ErrLookaheadExceeded, it.ID, p.DateKey(it.NextReview), p.maxLookahead)
			}
			date = date.AddDate(0, 0, 1)
			key = date.Format(DateLayout)
		}

		plan[key] = append(plan[key], models.ScheduleItem{
			ItemID:               it.ID,
			UserID:               userID,
			DueDate:              it.NextReview,
			Priority:             Priority(it, now),
			EstimatedTimeSeconds: EstimatedSeconds(it),
		})
	}
	return plan, nil
}

// Priority balances intrinsic difficulty against staleness; the overdue term
// saturates after a week.
func Priority(item models.LearningItem, now time.Time) float64 {
	daysOverdue := 0
	if late := now.Sub(item.NextReview); late > 0 {
		daysOverdue = int(late / day)
	}
	return 0.5*item.Difficulty + 0.5*math.Min(1.0, float64(daysOverdue)/overdueSaturation)
}

// EstimatedSeconds returns the expected review time, 30s to 90s.
func EstimatedSeconds(item models.LearningItem) int {
	return baseReviewSeconds + int(math.Round(item.Difficulty*extraReviewSeconds))
}

// Summarize folds a plan into per-day totals. items must contain every
// scheduled item so new and repeat reviews can be told apart.
func (p *Planner) Summarize(plan Plan, items []models.LearningItem, userID int64, now time.Time) models.Schedule {
	byID := lo.KeyBy(items, func(it models.LearningItem) string { return it.ID.String() })

	schedule := models.Schedule{UserID: userID, Days: make([]models.DailySchedule, 0, len(plan))}
	for _, date := range plan.Dates() {
		entries := plan[date]
		seconds := lo.SumBy(entries, func(e models.ScheduleItem) int { return e.EstimatedTimeSeconds })
		newCount := lo.CountBy(entries, func(e models.ScheduleItem) bool {
			it, ok := byID[e.ItemID.String()]
			return ok && it.IsNew()
		})
		schedule.Days = append(schedule.Days, models.DailySchedule{
			Date:                 date,
			UserID:               userID,
			Items:                entries,
			TotalItems:           len(entries),
			EstimatedTimeMinutes: int(math.Ceil(float64(seconds) / 60)),
			NewItemsCount:        newCount,
			ReviewItemsCount:     len(entries) - newCount,
		})
		schedule.TotalItemsDue += len(entries)
	}

	today := p.StartOfDay(now)
	horizon := today.AddDate(0, 0, upcomingWindowDays)
	schedule.OverdueItemsCount = lo.CountBy(items, func(it models.LearningItem) bool {
		return it.NextReview.Before(today)
	})
	schedule.UpcomingItemsCount = lo.CountBy(items, func(it models.LearningItem) bool {
		return !it.NextReview.Before(today) && it.NextReview.Before(horizon)
	})
	return schedule
}

// Window keeps the days in [from, from+days).
func (p *Planner) Window(plan Plan, from time.Time, days int) Plan {
	start := p.StartOfDay(from)
	first := start.Format(DateLayout)
	last := start.AddDate(0, 0, days).Format(DateLayout)
	return lo.PickBy(plan, func(date string, _ []models.ScheduleItem) bool {
		return date >= first && date < last
	})
}

// FilterByTopic keeps items whose topic is listed (case-insensitive). An empty
// list keeps everything.
func FilterByTopic(items []models.LearningItem, topics []string) []models.LearningItem {
	if len(topics) == 0 {
		return items
	}
	wanted := lo.Associate(topics, func(t string) (string, struct{}) {
		return strings.ToLower(strings.TrimSpace(t)), struct{}{}
	})
	return lo.Filter(items, func(it models.LearningItem, _ int) bool {
		_, ok := wanted[strings.ToLower(strings.TrimSpace(it.Topic))]
		return ok
	})
}
