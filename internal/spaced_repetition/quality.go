package spaced_repetition

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality represents the quality of a response on the SM-2 0-5 scale
type Quality int

const (
	// Complete blackout, unable to recall
	QualityBlackout Quality = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrectRemembered Quality = 1
	// Correct response recalled with serious difficulty
	QualityDifficult Quality = 2
	// Correct response after some hesitation
	QualityCorrectHesitant Quality = 3
	// Correct response
	QualityCorrect Quality = 4
	// Perfect response with no hesitation
	QualityPerfect Quality = 5
)

var qualityNames = [...]string{
	QualityBlackout:            "blackout",
	QualityIncorrectRemembered: "incorrect-remembered",
	QualityDifficult:           "difficult",
	QualityCorrectHesitant:     "correct-hesitant",
	QualityCorrect:             "correct",
	QualityPerfect:             "perfect",
}

// IsValid reports whether q is on the 0-5 scale.
func (q Quality) IsValid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality converts user input ("0".."5") into a Quality.
func ParseQuality(s string) (Quality, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	q := Quality(n)
	if !q.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuality, n)
	}
	return q, nil
}
