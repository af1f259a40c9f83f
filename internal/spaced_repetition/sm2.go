package spaced_repetition

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/reviewplanner/pkg/models"
)

const (
	difficultyFloor    = 0.1
	difficultyCeiling  = 1.0
	difficultyStepDown = 0.05
	difficultyStepUp   = 0.1

	jitterLow   = 0.95
	jitterRange = 0.1

	day = 24 * time.Hour
)

// Config holds the tunable parameters of the interval engine.
type Config struct {
	InitialEaseFactor float64 `mapstructure:"initial_ease_factor"`
	MinEaseFactor     float64 `mapstructure:"min_ease_factor"`
	// EaseFactorModifier is reserved for alternative ease formulas; the
	// default SM-2 delta does not read it.
	EaseFactorModifier float64 `mapstructure:"ease_factor_modifier"`
	FirstIntervalDays  float64 `mapstructure:"first_interval_days"`
	SecondIntervalDays float64 `mapstructure:"second_interval_days"`
	DisableJitter      bool    `mapstructure:"disable_jitter"`
}

// DefaultConfig returns the classic SM-2 settings.
func DefaultConfig() Config {
	return Config{
		InitialEaseFactor:  2.5,
		MinEaseFactor:      1.3,
		EaseFactorModifier: 0.15,
		FirstIntervalDays:  1.0,
		SecondIntervalDays: 6.0,
	}
}

// Validate rejects settings that would break the ease or interval invariants.
func (c Config) Validate() error {
	switch {
	case c.MinEaseFactor <= 0:
		return fmt.Errorf("%w: min ease factor %v must be positive", ErrInvalidConfig, c.MinEaseFactor)
	case c.InitialEaseFactor < c.MinEaseFactor:
		return fmt.Errorf("%w: initial ease factor %v below minimum %v", ErrInvalidConfig, c.InitialEaseFactor, c.MinEaseFactor)
	case c.FirstIntervalDays <= 0:
		return fmt.Errorf("%w: first interval %v must be positive", ErrInvalidConfig, c.FirstIntervalDays)
	case c.SecondIntervalDays <= 0:
		return fmt.Errorf("%w: second interval %v must be positive", ErrInvalidConfig, c.SecondIntervalDays)
	}
	return nil
}

// JitterSource supplies uniform values in [0, 1). *rand.Rand satisfies it.
type JitterSource interface {
	Float64() float64
}

// Result is the outcome of scoring one review.
type Result struct {
	NextReview   time.Time
	EaseFactor   float64
	IntervalDays float64
}

// SM2 implements a SuperMemo-2 variant with sub-day requeue of failed recalls
// and a small random spread on successful intervals.
type SM2 struct {
	cfg Config

	mu     sync.Mutex
	jitter JitterSource
}

// NewSM2 creates an engine. A nil jitter source falls back to a time-seeded one.
func NewSM2(cfg Config, jitter JitterSource) (*SM2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if jitter == nil {
		jitter = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SM2{cfg: cfg, jitter: jitter}, nil
}

// Config returns the engine settings.
func (sm *SM2) Config() Config {
	return sm.cfg
}

// NewItem creates a learning item seeded with the configured initial ease factor.
func (sm *SM2) NewItem(userID int64, topic, content string, difficulty float64, now time.Time) (models.LearningItem, error) {
	item, err := models.NewLearningItem(userID, topic, content, difficulty, now)
	if err != nil {
		return models.LearningItem{}, err
	}
	item.EaseFactor = sm.cfg.InitialEaseFactor
	return item, nil
}

// ComputeNextReview scores a review without touching the item.
func (sm *SM2) ComputeNextReview(item models.LearningItem, quality Quality, now time.Time) (Result, error) {
	if !quality.IsValid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidQuality, int(quality))
	}

	// Stored items may predate the current floor.
	ef := item.EaseFactor
	if ef < sm.cfg.MinEaseFactor {
		ef = sm.cfg.MinEaseFactor
	}

	// Failed recall: keep EF, bring the item back within the hour.
	if quality < QualityDifficult {
		delay := 30 * time.Minute
		if quality == QualityIncorrectRemembered {
			delay = time.Hour
		}
		return Result{
			NextReview:   now.Add(delay),
			EaseFactor:   ef,
			IntervalDays: float64(delay) / float64(day),
		}, nil
	}

	q := float64(5 - quality)
	newEF := ef + (0.1 - q*(0.08+q*0.02))
	if newEF < sm.cfg.MinEaseFactor {
		newEF = sm.cfg.MinEaseFactor
	}

	var interval float64
	switch item.ReviewCount {
	case 0:
		interval = sm.cfg.FirstIntervalDays
	case 1:
		interval = sm.cfg.SecondIntervalDays
	default:
		interval = item.IntervalDays * newEF
	}
	interval *= sm.jitterFactor()

	return Result{
		NextReview:   now.Add(time.Duration(interval * float64(day))),
		EaseFactor:   newEF,
		IntervalDays: interval,
	}, nil
}

// ApplyReview returns a copy of item with the review recorded at now.
func (sm *SM2) ApplyReview(item models.LearningItem, quality Quality, now time.Time) (models.LearningItem, error) {
	res, err := sm.ComputeNextReview(item, quality, now)
	if err != nil {
		return models.LearningItem{}, err
	}

	reviewed := now
	item.LastReviewed = &reviewed
	item.NextReview = res.NextReview
	item.EaseFactor = res.EaseFactor
	item.IntervalDays = res.IntervalDays
	item.ReviewCount++

	switch {
	case quality >= QualityCorrect:
		item.Difficulty = clampDifficulty(item.Difficulty - difficultyStepDown)
	case quality <= QualityIncorrectRemembered:
		item.Difficulty = clampDifficulty(item.Difficulty + difficultyStepUp)
	}
	return item, nil
}

// IsMastered determines if an item is considered "mastered":
// reviewed at least 5 times, spaced a month or more apart, and easy for the user.
func (sm *SM2) IsMastered(item models.LearningItem) bool {
	return item.ReviewCount >= 5 &&
		item.IntervalDays >= 30 &&
		item.Difficulty <= 0.3
}

func (sm *SM2) jitterFactor() float64 {
	if sm.cfg.DisableJitter {
		return 1
	}
	sm.mu.Lock()
	r := sm.jitter.Float64()
	sm.mu.Unlock()
	return jitterLow + jitterRange*r
}

func clampDifficulty(d float64) float64 {
	return math.Min(difficultyCeiling, math.Max(difficultyFloor, d))
}
