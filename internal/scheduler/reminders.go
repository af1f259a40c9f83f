package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/example/reviewplanner/pkg/models"
)

// Default notification window
const (
	DefaultReminderStartHour = 8
	DefaultReminderEndHour   = 22
	DefaultReminderEvery     = 60 // minutes
)

// ReminderConfig controls when reminders go out.
type ReminderConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	StartHour    int  `mapstructure:"start_hour"`
	EndHour      int  `mapstructure:"end_hour"`
	EveryMinutes int  `mapstructure:"every_minutes"`
}

// UserSource lists users whose notification hour matches.
type UserSource interface {
	ListForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// PlanSource builds today's portion of a user's plan.
type PlanSource interface {
	TodayPlan(ctx context.Context, user models.User) (models.DailySchedule, error)
}

// Notifier interface for sending reminders
type Notifier interface {
	SendReminder(ctx context.Context, user models.User, day models.DailySchedule) error
}

// Reminders periodically tells users about the reviews planned for today.
type Reminders struct {
	scheduler *gocron.Scheduler
	cfg       ReminderConfig
	loc       *time.Location
	users     UserSource
	plans     PlanSource
	notifier  Notifier
	log       logrus.FieldLogger
	clock     func() time.Time

	mu       sync.Mutex
	lastSent map[int64]string // user ID -> hour slot of the last reminder
}

// NewReminders creates the reminder job. Hours are interpreted in loc.
func NewReminders(cfg ReminderConfig, loc *time.Location, users UserSource, plans PlanSource, notifier Notifier, log logrus.FieldLogger) (*Reminders, error) {
	if cfg.StartHour < 0 || cfg.StartHour > 23 || cfg.EndHour < 0 || cfg.EndHour > 23 {
		return nil, fmt.Errorf("scheduler: reminder hours %d-%d out of range", cfg.StartHour, cfg.EndHour)
	}
	if cfg.EveryMinutes <= 0 {
		cfg.EveryMinutes = DefaultReminderEvery
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reminders{
		scheduler: gocron.NewScheduler(loc),
		cfg:       cfg,
		loc:       loc,
		users:     users,
		plans:     plans,
		notifier:  notifier,
		log:       log.WithField("component", "reminders"),
		clock:     time.Now,
		lastSent:  make(map[int64]string),
	}, nil
}

// Start begins running the reminder job until ctx is done or Stop is called.
func (r *Reminders) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("reminders disabled")
		return nil
	}
	_, err := r.scheduler.Every(r.cfg.EveryMinutes).Minutes().Do(func() {
		if err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("reminder run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	r.scheduler.StartAsync()
	r.log.WithField("every_minutes", r.cfg.EveryMinutes).Info("reminders started")
	return nil
}

// Stop terminates the reminder job
func (r *Reminders) Stop() {
	r.scheduler.Stop()
}

// RunOnce sends reminders to every user whose notification hour is the
// current hour, provided it falls inside the configured window.
// A user gets at most one reminder per hour however often the job runs.
func (r *Reminders) RunOnce(ctx context.Context) error {
	now := r.clock().In(r.loc)
	currentHour := now.Hour()
	slot := now.Format("2006-01-02T15")
	if currentHour < r.cfg.StartHour || currentHour > r.cfg.EndHour {
		r.log.WithFields(logrus.Fields{
			"hour":  currentHour,
			"start": r.cfg.StartHour,
			"end":   r.cfg.EndHour,
		}).Debug("outside notification hours, skipping reminders")
		return nil
	}

	users, err := r.users.ListForNotification(ctx, currentHour)
	if err != nil {
		return fmt.Errorf("list users for notification: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.alreadySent(user.ID, slot) {
			continue
		}
		log := r.log.WithField("user_id", user.ID)

		day, err := r.plans.TodayPlan(ctx, user)
		if err != nil {
			log.WithError(err).Warn("build today's plan")
			continue
		}
		if day.TotalItems == 0 {
			continue
		}
		if err := r.notifier.SendReminder(ctx, user, day); err != nil {
			log.WithError(err).Warn("send reminder")
			continue
		}
		r.markSent(user.ID, slot)
		log.WithField("items", day.TotalItems).Info("reminder sent")
	}
	return nil
}

func (r *Reminders) alreadySent(userID int64, slot string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSent[userID] == slot
}

func (r *Reminders) markSent(userID int64, slot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSent[userID] = slot
}
