package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/polypattern/internal/models"
)

// WindowQuery selects the historical windows offered to a pattern search.
type WindowQuery struct {
	// Length is the number of points per window.
	Length int
	// Stride is the step between consecutive window starts.
	Stride int

	// Windows of ExcludeTokenID that overlap [ExcludeFrom, ExcludeTo] are
	// skipped so a query never matches itself.
	ExcludeTokenID string
	ExcludeFrom    time.Time
	ExcludeTo      time.Time
}

type tokenInfo struct {
	tokenID  string
	marketID string
	question string
}

// WindowIterator slides fixed-length windows over every stored token
// history. Only one token's history is held in memory at a time, and no
// database rows stay open between calls to Next.
type WindowIterator struct {
	ctx context.Context
	s   *Storage
	q   WindowQuery

	tokens   []tokenInfo
	tokenIdx int
	token    tokenInfo
	series   models.TimeSeries
	pos      int

	current models.CandidateWindow
	err     error
}

// CandidateWindows returns an iterator over the stored windows matching q.
// Cancelling ctx stops the iteration and is reported by Err.
func (s *Storage) CandidateWindows(ctx context.Context, q WindowQuery) (*WindowIterator, error) {
	if q.Length < 2 {
		return nil, fmt.Errorf("window length must be at least 2, got %d", q.Length)
	}
	if q.Stride < 1 {
		return nil, fmt.Errorf("window stride must be at least 1, got %d", q.Stride)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.token_id, COALESCE(m.market_id, ''),
			COALESCE(NULLIF(m.market_question, ''), m.title, '')
		FROM (SELECT DISTINCT token_id FROM price_points) t
		LEFT JOIN markets m ON m.id = t.token_id
		ORDER BY t.token_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []tokenInfo
	for rows.Next() {
		var t tokenInfo
		if err := rows.Scan(&t.tokenID, &t.marketID, &t.question); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	return &WindowIterator{ctx: ctx, s: s, q: q, tokens: tokens}, nil
}

// Next advances to the next window.
func (it *WindowIterator) Next() bool {
	for it.err == nil {
		if it.pos+it.q.Length <= len(it.series) {
			start := it.pos
			it.pos += it.q.Stride

			window := it.series[start : start+it.q.Length]
			if it.excluded(window) {
				continue
			}
			it.current = it.buildCandidate(window)
			return true
		}

		if it.tokenIdx >= len(it.tokens) {
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}

		it.token = it.tokens[it.tokenIdx]
		it.tokenIdx++
		it.pos = 0
		it.series, it.err = it.s.getSeries(it.ctx, it.token.tokenID, time.Time{}, time.Time{})
	}
	return false
}

// Candidate returns the current window.
func (it *WindowIterator) Candidate() models.CandidateWindow {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *WindowIterator) Err() error {
	return it.err
}

func (it *WindowIterator) excluded(window models.TimeSeries) bool {
	if it.q.ExcludeTokenID == "" || it.token.tokenID != it.q.ExcludeTokenID {
		return false
	}
	if !it.q.ExcludeTo.IsZero() && window.Start().After(it.q.ExcludeTo) {
		return false
	}
	if !it.q.ExcludeFrom.IsZero() && window.End().Before(it.q.ExcludeFrom) {
		return false
	}
	return true
}

// buildCandidate copies the window and records the price move from its last
// point to the first point at or after each horizon.
func (it *WindowIterator) buildCandidate(window models.TimeSeries) models.CandidateWindow {
	series := make(models.TimeSeries, len(window))
	copy(series, window)

	c := models.CandidateWindow{
		TokenID:        it.token.tokenID,
		MarketID:       it.token.marketID,
		MarketQuestion: it.token.question,
		WindowStart:    series.Start(),
		WindowEnd:      series.End(),
		Series:         series,
	}

	endPrice := series[len(series)-1].Value
	for _, h := range models.Horizons {
		if later, ok := it.series.PointAtOrAfter(c.WindowEnd.Add(h.Duration())); ok {
			c.SetObservedOutcome(h, later.Value-endPrice, later.Timestamp)
		}
	}
	return c
}
