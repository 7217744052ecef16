package pattern

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/polypattern/internal/models"
)

var (
	// ErrInvalidConfig is returned before any candidate is scanned when the
	// search configuration cannot be used.
	ErrInvalidConfig = errors.New("pattern: invalid configuration")

	// ErrInvalidQuery is returned when the query window is too short or
	// contains non-finite values.
	ErrInvalidQuery = errors.New("pattern: invalid query")
)

// Defaults used by DefaultConfig.
const (
	DefaultWindowSize      = 3
	DefaultTopK            = 20
	DefaultLengthTolerance = 0.2
)

// Config holds every tunable of a search.
type Config struct {
	// WindowSize is the Sakoe–Chiba half-width used by LB_Keogh and DTW.
	WindowSize int
	// MaxDistance is the early-abandonment budget and acceptance ceiling.
	// 0 disables it.
	MaxDistance float64
	// TopK bounds the number of matches kept.
	TopK int
	// Normalization is applied to the query and to every candidate.
	Normalization NormalizationMode
	// DirectionThreshold is the |delta| at or below which a move is FLAT.
	DirectionThreshold float64
	// SignificanceMinSample is the smallest UP+DOWN tally that can produce
	// a non-zero confidence.
	SignificanceMinSample int
	// LengthTolerance is the largest allowed |len(candidate)-len(query)| as
	// a fraction of the query length.
	LengthTolerance float64
	// SimilarityScale is the distance mapped to similarity 0. 0 means the
	// query length.
	SimilarityScale float64
	// OutcomeHorizon picks the recorded forward move that is classified.
	OutcomeHorizon models.Horizon
	// IncludePatternData attaches each match's normalized series.
	IncludePatternData bool
	// IncludeAlignment attaches each match's DTW warping path.
	IncludeAlignment bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		WindowSize:            DefaultWindowSize,
		MaxDistance:           0,
		TopK:                  DefaultTopK,
		Normalization:         NormalizeMinMax,
		DirectionThreshold:    DefaultDirectionThreshold,
		SignificanceMinSample: DefaultSignificanceMinSample,
		LengthTolerance:       DefaultLengthTolerance,
		SimilarityScale:       0,
		OutcomeHorizon:        models.Horizon4h,
	}
}

// Validate rejects configurations the search loop cannot run with.
func (c Config) Validate() error {
	if c.WindowSize < 0 {
		return fmt.Errorf("%w: window size must not be negative, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	}
	if !nonNegative(c.MaxDistance) {
		return fmt.Errorf("%w: max distance must be a non-negative number", ErrInvalidConfig)
	}
	if _, err := ParseNormalizationMode(string(c.Normalization)); err != nil {
		return err
	}
	if !nonNegative(c.DirectionThreshold) || math.IsInf(c.DirectionThreshold, 1) {
		return fmt.Errorf("%w: direction threshold must be a finite non-negative number", ErrInvalidConfig)
	}
	if c.SignificanceMinSample < 1 {
		return fmt.Errorf("%w: significance min sample must be at least 1, got %d", ErrInvalidConfig, c.SignificanceMinSample)
	}
	if !nonNegative(c.LengthTolerance) || math.IsInf(c.LengthTolerance, 1) {
		return fmt.Errorf("%w: length tolerance must be a finite non-negative number", ErrInvalidConfig)
	}
	if !nonNegative(c.SimilarityScale) || math.IsInf(c.SimilarityScale, 1) {
		return fmt.Errorf("%w: similarity scale must be a finite non-negative number", ErrInvalidConfig)
	}
	if _, err := models.ParseHorizon(string(c.OutcomeHorizon)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && v >= 0
}

// budget returns the distance ceiling implied by MaxDistance.
func (c Config) budget() float64 {
	if c.MaxDistance == 0 {
		return math.Inf(1)
	}
	return c.MaxDistance
}
