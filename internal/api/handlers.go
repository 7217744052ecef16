package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
	"github.com/rewired-gh/polypattern/internal/scanner"
	"github.com/rewired-gh/polypattern/internal/storage"
)

// Limits on POST /api/v1/patterns/search.
const (
	maxSearchBodyBytes = 8 << 20
	maxSeriesPoints    = 2048
	maxCandidates      = 5000
	maxTopK            = 100
	// Alignment keeps a full (n+1)×(m+1) matrix per kept match.
	maxAlignedPoints = 256
)

// Handler implements the HTTP endpoints.
type Handler struct {
	storage *storage.Storage
	scanner *scanner.Scanner
}

func NewHandler(st *storage.Storage, sc *scanner.Scanner) *Handler {
	return &Handler{storage: st, scanner: sc}
}

// PointRequest is one observation of a posted series.
type PointRequest struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// CandidateRequest is a posted historical window with its realized moves.
type CandidateRequest struct {
	TokenID        string         `json:"tokenId" binding:"required"`
	MarketID       string         `json:"marketId"`
	MarketQuestion string         `json:"marketQuestion"`
	Series         []PointRequest `json:"series"`
	Outcome1h      *float64       `json:"outcome1h"`
	Outcome4h      *float64       `json:"outcome4h"`
	Outcome24h     *float64       `json:"outcome24h"`
}

// ConfigRequest overrides the server's search configuration field by field.
type ConfigRequest struct {
	WindowSize            *int     `json:"windowSize"`
	MaxDistance           *float64 `json:"maxDistance"`
	TopK                  *int     `json:"topK"`
	Normalization         *string  `json:"normalization"`
	DirectionThreshold    *float64 `json:"directionThreshold"`
	SignificanceMinSample *int     `json:"significanceMinSample"`
	LengthTolerance       *float64 `json:"lengthTolerance"`
	SimilarityScale       *float64 `json:"similarityScale"`
	OutcomeHorizon        *string  `json:"outcomeHorizon"`
	IncludePatternData    *bool    `json:"includePatternData"`
	IncludeAlignment      *bool    `json:"includeAlignment"`
}

// SearchRequest is the body of POST /api/v1/patterns/search.
type SearchRequest struct {
	Query      []PointRequest     `json:"query" binding:"required"`
	Candidates []CandidateRequest `json:"candidates" binding:"dive"`
	Config     *ConfigRequest     `json:"config"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Search runs the engine over the posted query and candidates.
func (h *Handler) Search(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSearchBodyBytes)

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := req.Config.apply(h.scanner.SearchConfig())
	if err := checkSearchSize(req, cfg); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	candidates := make([]models.CandidateWindow, len(req.Candidates))
	for i, cr := range req.Candidates {
		candidates[i] = cr.window()
	}

	result, err := pattern.Search(toSeries(req.Query), pattern.NewSliceIterator(candidates), cfg)
	if err != nil {
		if errors.Is(err, pattern.ErrInvalidConfig) || errors.Is(err, pattern.ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Pattern search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Prediction searches the stored corpus with the latest history of a
// tracked market.
func (h *Handler) Prediction(c *gin.Context) {
	tokenID := c.Param("tokenId")

	market, err := h.storage.GetMarket(tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "market not found"})
			return
		}
		logger.Error("Failed to load market %s: %v", tokenID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}

	result, err := h.scanner.Analyze(c.Request.Context(), *market)
	if err != nil {
		if errors.Is(err, scanner.ErrInsufficientHistory) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Prediction for %s failed: %v", tokenID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"market": market,
		"result": result,
	})
}

// checkSearchSize bounds the work and memory a single request can ask for.
func checkSearchSize(req SearchRequest, cfg pattern.Config) error {
	if len(req.Query) > maxSeriesPoints {
		return fmt.Errorf("query has %d points, limit is %d", len(req.Query), maxSeriesPoints)
	}
	if len(req.Candidates) > maxCandidates {
		return fmt.Errorf("%d candidates, limit is %d", len(req.Candidates), maxCandidates)
	}
	if cfg.TopK > maxTopK {
		return fmt.Errorf("topK %d, limit is %d", cfg.TopK, maxTopK)
	}

	longest := len(req.Query)
	for _, cr := range req.Candidates {
		if len(cr.Series) > maxSeriesPoints {
			return fmt.Errorf("candidate %s has %d points, limit is %d", cr.TokenID, len(cr.Series), maxSeriesPoints)
		}
		longest = max(longest, len(cr.Series))
	}
	if cfg.IncludeAlignment && longest > maxAlignedPoints {
		return fmt.Errorf("includeAlignment supports series up to %d points, got %d", maxAlignedPoints, longest)
	}
	return nil
}

func toSeries(points []PointRequest) models.TimeSeries {
	raw := make([]models.Point, len(points))
	for i, p := range points {
		raw[i] = models.Point{Timestamp: p.T, Value: p.V}
	}
	return models.NewTimeSeries(raw)
}

func (cr CandidateRequest) window() models.CandidateWindow {
	series := toSeries(cr.Series)
	return models.CandidateWindow{
		TokenID:        cr.TokenID,
		MarketID:       cr.MarketID,
		MarketQuestion: cr.MarketQuestion,
		WindowStart:    series.Start(),
		WindowEnd:      series.End(),
		Series:         series,
		Outcome1h:      cr.Outcome1h,
		Outcome4h:      cr.Outcome4h,
		Outcome24h:     cr.Outcome24h,
	}
}

// apply returns base with every set field of r overridden.
func (r *ConfigRequest) apply(base pattern.Config) pattern.Config {
	if r == nil {
		return base
	}
	cfg := base
	if r.WindowSize != nil {
		cfg.WindowSize = *r.WindowSize
	}
	if r.MaxDistance != nil {
		cfg.MaxDistance = *r.MaxDistance
	}
	if r.TopK != nil {
		cfg.TopK = *r.TopK
	}
	if r.Normalization != nil {
		cfg.Normalization = pattern.NormalizationMode(*r.Normalization)
	}
	if r.DirectionThreshold != nil {
		cfg.DirectionThreshold = *r.DirectionThreshold
	}
	if r.SignificanceMinSample != nil {
		cfg.SignificanceMinSample = *r.SignificanceMinSample
	}
	if r.LengthTolerance != nil {
		cfg.LengthTolerance = *r.LengthTolerance
	}
	if r.SimilarityScale != nil {
		cfg.SimilarityScale = *r.SimilarityScale
	}
	if r.OutcomeHorizon != nil {
		cfg.OutcomeHorizon = models.Horizon(*r.OutcomeHorizon)
	}
	if r.IncludePatternData != nil {
		cfg.IncludePatternData = *r.IncludePatternData
	}
	if r.IncludeAlignment != nil {
		cfg.IncludeAlignment = *r.IncludeAlignment
	}
	return cfg
}
