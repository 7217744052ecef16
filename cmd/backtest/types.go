package main

import (
	"time"

	"github.com/rewired-gh/polypattern/internal/models"
)

// Trial is one walk-forward prediction checked against what happened next.
type Trial struct {
	TokenID    string
	At         time.Time
	Predicted  models.Direction
	Confidence float64
	Actual     models.Direction
	Move       float64
}

// Hit reports whether a directional call matched the realized direction.
func (t Trial) Hit() bool {
	return t.Predicted != models.DirectionNeutral && t.Predicted == t.Actual
}

// ConfidenceBucket holds the calls made at or above a confidence floor.
type ConfidenceBucket struct {
	MinConfidence float64
	Calls         int
	Hits          int
}

// HitRate is the fraction of calls that were right, 0 without calls.
func (b ConfidenceBucket) HitRate() float64 {
	if b.Calls == 0 {
		return 0
	}
	return float64(b.Hits) / float64(b.Calls)
}

// Report summarizes a backtest
type Report struct {
	Trials  int
	Neutral int
	Buckets []ConfidenceBucket
	Actuals map[models.Direction]int
}
