package grading

import (
	"math"
	"time"

	"live-quiz-service/internal/domain"
)

// MaxPoints is the award for a fully correct answer submitted instantly.
const MaxPoints = 1000

// Score maps a credit multiplier and response time to points.
// Credit gates the award; speed scales it linearly from full credit at zero elapsed
// time to half credit at the time limit, reaching zero at twice the limit.
func Score(multiplier float64, elapsed, limit time.Duration) int {
	if multiplier <= 0 {
		return 0
	}
	if multiplier > 1 {
		multiplier = 1
	}
	if limit <= 0 {
		limit = domain.DefaultTimeLimit
	}
	if elapsed < 0 {
		elapsed = 0
	}
	speed := math.Max(0, 1-(float64(elapsed)/float64(limit))*0.5)
	return int(math.Round(MaxPoints * multiplier * speed))
}
