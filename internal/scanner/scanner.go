// Package scanner runs the pattern search for every tracked market and turns
// the confident predictions into ranked, deduplicated signals.
//
// For each market the latest LookbackPoints prices form the query. Every
// stored window of the same length, across all tokens, is a candidate, and
// its realized forward moves vote on the direction the query is likely to
// take next.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
	"github.com/rewired-gh/polypattern/internal/storage"
)

// ErrInsufficientHistory is returned when a market has fewer stored points
// than the query window needs.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Options controls how queries and candidate windows are cut from storage.
type Options struct {
	LookbackPoints    int
	WindowStride      int
	CandidateLimit    int // 0 = unlimited
	ExcludeOwnHistory bool
}

// notifiedRecord tracks a previously sent signal for cooldown deduplication.
type notifiedRecord struct {
	Direction models.Direction
	SentAt    time.Time
}

// Scanner searches stored histories for patterns
type Scanner struct {
	storage  *storage.Storage
	opts     Options
	search   pattern.Config
	notified map[string]notifiedRecord // key = token ID
}

// New creates a new Scanner instance
func New(s *storage.Storage, opts Options, search pattern.Config) *Scanner {
	if opts.WindowStride < 1 {
		opts.WindowStride = 1
	}
	return &Scanner{
		storage:  s,
		opts:     opts,
		search:   search,
		notified: make(map[string]notifiedRecord),
	}
}

// SearchConfig returns the engine configuration the scanner runs with.
func (sc *Scanner) SearchConfig() pattern.Config {
	return sc.search
}

// MarketResult pairs a market with the outcome of its pattern search.
type MarketResult struct {
	Market models.Market
	Result *models.PatternSearchResult
}

// ScanError represents a per-market error during a scan
type ScanError struct {
	TokenID string
	Err     error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("scan error for token %s: %v", e.TokenID, e.Err)
}

func (e ScanError) Unwrap() error {
	return e.Err
}

// Analyze searches the stored corpus for windows resembling the latest
// history of market. Cancelling ctx stops the candidate stream and fails
// the search.
func (sc *Scanner) Analyze(ctx context.Context, market models.Market) (*models.PatternSearchResult, error) {
	query, err := sc.storage.LatestSeries(market.ID, sc.opts.LookbackPoints)
	if err != nil {
		return nil, err
	}
	if len(query) < sc.opts.LookbackPoints {
		return nil, fmt.Errorf("token %s has %d of %d points: %w",
			market.ID, len(query), sc.opts.LookbackPoints, ErrInsufficientHistory)
	}

	wq := storage.WindowQuery{
		Length: sc.opts.LookbackPoints,
		Stride: sc.opts.WindowStride,
	}
	if sc.opts.ExcludeOwnHistory {
		wq.ExcludeTokenID = market.ID
		wq.ExcludeFrom = query.Start()
		wq.ExcludeTo = query.End()
	}

	windows, err := sc.storage.CandidateWindows(ctx, wq)
	if err != nil {
		return nil, err
	}
	candidates := pattern.Limit(withContext(ctx, windows), sc.opts.CandidateLimit)

	result, err := pattern.Search(query, candidates, sc.search)
	if err != nil {
		return nil, err
	}

	d := result.Diagnostics
	logger.WithFields(logger.Fields{
		"token_id":   market.ID,
		"scanned":    d.Scanned,
		"pruned":     d.PrunedLowerBound,
		"abandoned":  d.Abandoned,
		"rejected":   d.Rejected,
		"matches":    len(result.Matches),
		"direction":  result.Prediction.Direction,
		"confidence": result.Prediction.Confidence,
	}).Debug("Pattern search finished")

	return result, nil
}

// ScanAll analyzes every market. Markets that fail are reported as
// ScanErrors and do not stop the scan; markets without enough history are
// skipped silently. Only cancellation of ctx is fatal.
func (sc *Scanner) ScanAll(ctx context.Context, markets []models.Market) ([]MarketResult, []ScanError, error) {
	var results []MarketResult
	var scanErrors []ScanError
	skipped := 0

	for _, market := range markets {
		if err := ctx.Err(); err != nil {
			return results, scanErrors, err
		}

		result, err := sc.Analyze(ctx, market)
		switch {
		case err == nil:
			results = append(results, MarketResult{Market: market, Result: result})
		case errors.Is(err, ErrInsufficientHistory):
			skipped++
		case ctx.Err() != nil:
			return results, scanErrors, ctx.Err()
		default:
			scanErrors = append(scanErrors, ScanError{TokenID: market.ID, Err: err})
		}
	}

	logger.Debug("ScanAll: analyzed=%d, insufficient history=%d, errors=%d",
		len(results), skipped, len(scanErrors))

	return results, scanErrors, nil
}

// RankPredictions turns directional predictions with confidence of at least
// minConfidence into signals and returns the k most confident. Ties are
// broken by token ID ascending. Returns an empty (non-nil) slice when
// nothing qualifies.
func RankPredictions(results []MarketResult, minConfidence float64, k int) []models.Signal {
	signals := make([]models.Signal, 0)
	now := time.Now()

	for _, r := range results {
		if r.Result == nil {
			continue
		}
		p := r.Result.Prediction
		if p.Direction != models.DirectionUp && p.Direction != models.DirectionDown {
			continue
		}
		if p.Confidence < minConfidence {
			continue
		}

		var current float64
		if data := r.Result.Query.Data; len(data) > 0 {
			current = data[len(data)-1].Value
		}

		stats := r.Result.Statistics
		signals = append(signals, models.Signal{
			ID:             uuid.New().String(),
			TokenID:        r.Market.ID,
			MarketQuestion: r.Market.Question(),
			EventURL:       r.Market.EventURL,
			Direction:      p.Direction,
			Confidence:     p.Confidence,
			ExpectedMove:   p.ExpectedMove,
			MatchCount:     stats.TotalMatches,
			UpCount:        stats.UpCount,
			DownCount:      stats.DownCount,
			CurrentPrice:   current,
			DetectedAt:     now,
		})
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Confidence != signals[j].Confidence {
			return signals[i].Confidence > signals[j].Confidence
		}
		return signals[i].TokenID < signals[j].TokenID
	})

	if k <= 0 {
		return []models.Signal{}
	}
	if k < len(signals) {
		signals = signals[:k]
	}
	return signals
}

// FilterRecentlySent drops signals for tokens notified within cooldown in
// the same direction. A flipped direction always passes. Returns a non-nil
// slice.
func (sc *Scanner) FilterRecentlySent(signals []models.Signal, cooldown time.Duration) []models.Signal {
	now := time.Now()
	result := make([]models.Signal, 0, len(signals))

	for _, s := range signals {
		rec, exists := sc.notified[s.TokenID]
		if exists && now.Sub(rec.SentAt) < cooldown && rec.Direction == s.Direction {
			continue
		}
		result = append(result, s)
	}
	return result
}

// RecordNotified records signals as notified at the current time.
// Call this after a successful Telegram send to enable cooldown deduplication.
func (sc *Scanner) RecordNotified(signals []models.Signal) {
	now := time.Now()
	for _, s := range signals {
		sc.notified[s.TokenID] = notifiedRecord{
			Direction: s.Direction,
			SentAt:    now,
		}
	}
}

// contextIterator stops a candidate stream once ctx is done.
type contextIterator struct {
	pattern.CandidateIterator
	ctx context.Context
	err error
}

func withContext(ctx context.Context, it pattern.CandidateIterator) pattern.CandidateIterator {
	return &contextIterator{CandidateIterator: it, ctx: ctx}
}

func (c *contextIterator) Next() bool {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	return c.CandidateIterator.Next()
}

func (c *contextIterator) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.CandidateIterator.Err()
}
