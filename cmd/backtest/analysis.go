package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
	"github.com/rewired-gh/polypattern/internal/storage"
)

// confidenceFloors are the minimum-confidence settings the report compares.
var confidenceFloors = []float64{0, 0.5, 0.8, 0.9, 0.95, 0.99}

// evaluateToken walks through the stored history of tokenID, predicting from
// every step-th query window and comparing with the realized move.
// Candidates are limited to windows whose outcome was already known at the
// query's end.
func evaluateToken(ctx context.Context, store *storage.Storage, tokenID string, lookback, step int, cfg pattern.Config) ([]Trial, error) {
	series, err := store.GetSeries(tokenID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	horizon := cfg.OutcomeHorizon.Duration()
	var trials []Trial

	for end := lookback; end <= len(series); end += step {
		query := series[end-lookback : end]
		endPrice := query[len(query)-1].Value
		later, ok := series.ValueAtOrAfter(query.End().Add(horizon))
		if !ok {
			break
		}

		windows, err := store.CandidateWindows(ctx, storage.WindowQuery{Length: lookback, Stride: 1})
		if err != nil {
			return nil, err
		}
		candidates := knownBefore(windows, query.End(), cfg.OutcomeHorizon)

		result, err := pattern.Search(query, candidates, cfg)
		if err != nil {
			return nil, fmt.Errorf("search at %s: %w", query.End().Format(time.RFC3339), err)
		}

		move := later - endPrice
		trials = append(trials, Trial{
			TokenID:    tokenID,
			At:         query.End(),
			Predicted:  result.Prediction.Direction,
			Confidence: result.Prediction.Confidence,
			Actual:     pattern.GetDirection(move, cfg.DirectionThreshold),
			Move:       move,
		})
	}
	return trials, nil
}

// summarize tallies trials into one bucket per confidence floor.
func summarize(trials []Trial, floors []float64) Report {
	sorted := append([]float64(nil), floors...)
	sort.Float64s(sorted)

	report := Report{
		Trials:  len(trials),
		Buckets: make([]ConfidenceBucket, len(sorted)),
		Actuals: make(map[models.Direction]int),
	}
	for i, f := range sorted {
		report.Buckets[i].MinConfidence = f
	}

	for _, t := range trials {
		report.Actuals[t.Actual]++
		if t.Predicted == models.DirectionNeutral {
			report.Neutral++
			continue
		}
		for i := range report.Buckets {
			b := &report.Buckets[i]
			if t.Confidence < b.MinConfidence {
				break
			}
			b.Calls++
			if t.Hit() {
				b.Hits++
			}
		}
	}
	return report
}

// recommendFloor picks the lowest floor whose hit rate reaches target with
// at least minCalls calls. ok is false when none does.
func recommendFloor(report Report, target float64, minCalls int) (float64, bool) {
	for _, b := range report.Buckets {
		if b.Calls >= minCalls && b.HitRate() >= target {
			return b.MinConfidence, true
		}
	}
	return 0, false
}

// cutoffIterator hides candidates whose outcome lies after cutoff. The
// observed outcome time counts when known, since gapped histories read it
// from a point past end+h.
type cutoffIterator struct {
	pattern.CandidateIterator
	cutoff  time.Time
	horizon models.Horizon
}

func knownBefore(it pattern.CandidateIterator, cutoff time.Time, h models.Horizon) pattern.CandidateIterator {
	return &cutoffIterator{CandidateIterator: it, cutoff: cutoff, horizon: h}
}

func (c *cutoffIterator) Next() bool {
	for c.CandidateIterator.Next() {
		w := c.Candidate()
		if w.WindowEnd.Add(c.horizon.Duration()).After(c.cutoff) {
			continue
		}
		if at := w.OutcomeTime(c.horizon); at.After(c.cutoff) {
			continue
		}
		return true
	}
	return false
}
