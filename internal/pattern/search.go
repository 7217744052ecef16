package pattern

import (
	"fmt"
	"math"
	"sort"

	"github.com/rewired-gh/polypattern/internal/models"
)

// scoredCandidate is a candidate that survived DTW.
type scoredCandidate struct {
	window     models.CandidateWindow
	normalized []float64
	distance   float64
}

// rankedList keeps the k smallest distances seen so far, best first.
// Equal distances keep arrival order.
type rankedList struct {
	k     int
	items []scoredCandidate
}

func newRankedList(k int) *rankedList {
	return &rankedList{k: k, items: make([]scoredCandidate, 0, k)}
}

// threshold is the distance a new candidate has to stay within to matter.
func (r *rankedList) threshold(budget float64) float64 {
	if len(r.items) < r.k {
		return budget
	}
	return math.Min(budget, r.items[r.k-1].distance)
}

func (r *rankedList) insert(s scoredCandidate) bool {
	if len(r.items) == r.k && s.distance >= r.items[r.k-1].distance {
		return false
	}

	idx := sort.Search(len(r.items), func(i int) bool {
		return r.items[i].distance > s.distance
	})
	r.items = append(r.items, scoredCandidate{})
	copy(r.items[idx+1:], r.items[idx:])
	r.items[idx] = s

	if len(r.items) > r.k {
		r.items = r.items[:r.k]
	}
	return true
}

// Search ranks candidates by DTW similarity to query and aggregates the
// forward outcomes of the best cfg.TopK into a prediction.
//
// The configuration is validated before the first candidate is read. An
// error from the iterator aborts the search.
func Search(query models.TimeSeries, candidates CandidateIterator, cfg Config) (*models.PatternSearchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidQuery, len(query))
	}
	if !query.Finite() {
		return nil, fmt.Errorf("%w: query contains non-finite values", ErrInvalidQuery)
	}

	n := len(query)
	normQuery, err := Normalize(cfg.Normalization, query.Values())
	if err != nil {
		return nil, err
	}

	result := &models.PatternSearchResult{
		Query: models.Query{
			StartTime:  query.Start(),
			EndTime:    query.End(),
			Data:       query,
			Normalized: normQuery,
		},
		Matches: []models.PatternMatch{},
	}
	diag := &result.Diagnostics

	budget := cfg.budget()
	maxLenDiff := int(math.Floor(cfg.LengthTolerance * float64(n)))
	best := newRankedList(cfg.TopK)

	for candidates.Next() {
		window := candidates.Candidate()
		diag.Scanned++

		m := len(window.Series)
		if m == 0 || abs(m-n) > maxLenDiff {
			diag.SkippedLength++
			continue
		}
		if !window.Series.Finite() {
			diag.SkippedInvalid++
			continue
		}

		normCand, err := Normalize(cfg.Normalization, window.Series.Values())
		if err != nil {
			return nil, err
		}

		threshold := best.threshold(budget)
		if LBKeogh(normQuery, normCand, cfg.WindowSize) > threshold {
			diag.PrunedLowerBound++
			continue
		}

		distance := WindowedDistance(normQuery, normCand, cfg.WindowSize, threshold)
		if math.IsInf(distance, 1) {
			diag.Abandoned++
			continue
		}

		if best.insert(scoredCandidate{window: window, normalized: normCand, distance: distance}) {
			diag.Scored++
		} else {
			diag.Rejected++
		}
	}
	if err := candidates.Err(); err != nil {
		return nil, fmt.Errorf("candidate source: %w", err)
	}

	scale := cfg.SimilarityScale
	if scale == 0 {
		scale = float64(n)
	}

	for _, s := range best.items {
		match := buildMatch(s, scale, cfg)
		if cfg.IncludeAlignment {
			_, match.Path = WindowedPath(normQuery, s.normalized, cfg.WindowSize)
		}
		result.Matches = append(result.Matches, match)
	}

	var expectedMove float64
	result.Statistics, expectedMove = aggregate(result.Matches)
	result.Prediction = predict(result.Statistics, expectedMove, cfg.SignificanceMinSample)

	return result, nil
}

// Similarity maps a distance to a 0–100 score that falls linearly to 0 at
// scale and stays there.
func Similarity(distance, scale float64) float64 {
	if !(scale > 0) || math.IsNaN(distance) {
		return 0
	}
	return 100 * (1 - math.Min(distance/scale, 1))
}

func buildMatch(s scoredCandidate, scale float64, cfg Config) models.PatternMatch {
	w := s.window
	match := models.PatternMatch{
		TokenID:        w.TokenID,
		MarketID:       w.MarketID,
		MarketQuestion: w.MarketQuestion,
		WindowStart:    w.WindowStart,
		WindowEnd:      w.WindowEnd,
		Distance:       s.distance,
		Similarity:     Similarity(s.distance, scale),
		Outcome1h:      w.Outcome1h,
		Outcome4h:      w.Outcome4h,
		Outcome24h:     w.Outcome24h,
	}
	if match.WindowStart.IsZero() {
		match.WindowStart = w.Series.Start()
	}
	if match.WindowEnd.IsZero() {
		match.WindowEnd = w.Series.End()
	}

	if delta, ok := w.Outcome(cfg.OutcomeHorizon); ok && !math.IsNaN(delta) && !math.IsInf(delta, 0) {
		magnitude := delta
		match.Magnitude = &magnitude
		match.Direction = GetDirection(delta, cfg.DirectionThreshold)
	}
	if cfg.IncludePatternData {
		match.PatternData = s.normalized
	}
	return match
}

// aggregate tallies directions over matches with an outcome and returns the
// statistics together with the mean signed move.
func aggregate(matches []models.PatternMatch) (models.Statistics, float64) {
	stats := models.Statistics{TotalMatches: len(matches)}
	if len(matches) == 0 {
		return stats, 0
	}

	var distSum, upSum, downSum, moveSum float64
	withOutcome := 0
	for _, m := range matches {
		distSum += m.Distance
		if m.Magnitude == nil {
			continue
		}
		withOutcome++
		moveSum += *m.Magnitude

		switch m.Direction {
		case models.DirectionUp:
			stats.UpCount++
			upSum += *m.Magnitude
		case models.DirectionDown:
			stats.DownCount++
			downSum += *m.Magnitude
		default:
			stats.FlatCount++
		}
	}

	stats.AvgDistance = distSum / float64(len(matches))
	if withOutcome == 0 {
		return stats, 0
	}

	total := float64(withOutcome)
	stats.UpPercentage = 100 * float64(stats.UpCount) / total
	stats.DownPercentage = 100 * float64(stats.DownCount) / total
	stats.FlatPercentage = 100 * float64(stats.FlatCount) / total
	if stats.UpCount > 0 {
		stats.AvgUpMove = upSum / float64(stats.UpCount)
	}
	if stats.DownCount > 0 {
		stats.AvgDownMove = downSum / float64(stats.DownCount)
	}
	return stats, moveSum / total
}

// predict calls the majority of UP vs DOWN. A tie, including no decisive
// matches at all, is NEUTRAL with zero confidence.
func predict(stats models.Statistics, expectedMove float64, minSample int) models.Prediction {
	p := models.Prediction{
		Direction:    models.DirectionNeutral,
		ExpectedMove: expectedMove,
	}

	var majority int
	switch {
	case stats.UpCount > stats.DownCount:
		p.Direction = models.DirectionUp
		majority = stats.UpCount
	case stats.DownCount > stats.UpCount:
		p.Direction = models.DirectionDown
		majority = stats.DownCount
	default:
		return p
	}

	decisive := stats.UpCount + stats.DownCount
	p.Confidence = 1 - Significance(majority, decisive, minSample)
	return p
}
