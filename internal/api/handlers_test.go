package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
	"github.com/rewired-gh/polypattern/internal/scanner"
	"github.com/rewired-gh/polypattern/internal/storage"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *storage.Storage) {
	t.Helper()
	st, err := storage.New(100, 1000, storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sc := scanner.New(st, scanner.Options{LookbackPoints: 6, WindowStride: 1, ExcludeOwnHistory: true}, pattern.DefaultConfig())
	return NewServer(st, sc, gin.TestMode), st
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func points(values ...float64) []PointRequest {
	out := make([]PointRequest, len(values))
	for i, v := range values {
		out[i] = PointRequest{T: base.Add(time.Duration(i) * time.Minute), V: v}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSearch(t *testing.T) {
	srv, _ := newTestServer(t)

	body := SearchRequest{
		Query: points(0.1, 0.2, 0.3, 0.4, 0.5),
		Candidates: []CandidateRequest{
			{TokenID: "same", Series: points(0.2, 0.3, 0.4, 0.5, 0.6), Outcome4h: ptr(0.02)},
			{TokenID: "inverse", Series: points(0.5, 0.4, 0.3, 0.2, 0.1), Outcome4h: ptr(-0.05)},
		},
		Config: &ConfigRequest{TopK: ptr(1), IncludeAlignment: ptr(true)},
	}
	w := do(t, srv, http.MethodPost, "/api/v1/patterns/search", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.PatternSearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	require.Len(t, result.Matches, 1)
	match := result.Matches[0]
	assert.Equal(t, "same", match.TokenID)
	assert.InDelta(t, 0, match.Distance, 1e-9)
	assert.InDelta(t, 100, match.Similarity, 1e-9)
	assert.Equal(t, models.DirectionUp, match.Direction)
	assert.Len(t, match.Path, 5)
	assert.Equal(t, 2, result.Diagnostics.Scanned)
	// One decisive match is below the minimum sample.
	assert.Equal(t, models.DirectionUp, result.Prediction.Direction)
	assert.Zero(t, result.Prediction.Confidence)
}

func TestSearch_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "not an object"},
		{"missing query", map[string]any{"candidates": []any{}}},
		{"short query", SearchRequest{Query: points(0.5)}},
		{"invalid top k", SearchRequest{Query: points(0.1, 0.2), Config: &ConfigRequest{TopK: ptr(0)}}},
		{"unknown normalization", SearchRequest{Query: points(0.1, 0.2), Config: &ConfigRequest{Normalization: ptr("l2")}}},
		{"unknown horizon", SearchRequest{Query: points(0.1, 0.2), Config: &ConfigRequest{OutcomeHorizon: ptr("2h")}}},
		{"candidate without token", SearchRequest{Query: points(0.1, 0.2), Candidates: []CandidateRequest{{Series: points(0.1, 0.2)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/patterns/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestPrediction(t *testing.T) {
	srv, st := newTestServer(t)

	market := &models.Market{
		ID:             "query-up",
		MarketID:       "m-1",
		MarketQuestion: "Will it go up?",
		YesProbability: 0.4,
		LastUpdated:    base,
		CreatedAt:      base,
	}
	require.NoError(t, st.AddMarket(market))

	var pts []models.PricePoint
	for i := 0; i < 60; i++ {
		pts = append(pts, models.PricePoint{TokenID: "history", Timestamp: base.Add(time.Duration(i) * time.Hour), Price: 0.1 + float64(i)*0.01})
	}
	for i := 0; i < 6; i++ {
		pts = append(pts, models.PricePoint{TokenID: "query-up", Timestamp: base.Add(time.Duration(100+i) * time.Hour), Price: 0.3 + float64(i)*0.02})
	}
	require.NoError(t, st.AddPricePoints(pts))

	w := do(t, srv, http.MethodGet, "/api/v1/markets/query-up/prediction", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Market models.Market              `json:"market"`
		Result models.PatternSearchResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "query-up", resp.Market.ID)
	assert.Equal(t, models.DirectionUp, resp.Result.Prediction.Direction)
	assert.Greater(t, resp.Result.Prediction.Confidence, 0.99)
	assert.NotEmpty(t, resp.Result.Matches)
}

func TestPrediction_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/markets/nope/prediction", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrediction_InsufficientHistory(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.AddMarket(&models.Market{
		ID: "thin", MarketID: "m-thin", Title: "Thin market", YesProbability: 0.5,
		LastUpdated: base, CreatedAt: base,
	}))

	w := do(t, srv, http.MethodGet, "/api/v1/markets/thin/prediction", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestConfigRequestApply(t *testing.T) {
	baseCfg := pattern.DefaultConfig()

	var none *ConfigRequest
	assert.Equal(t, baseCfg, none.apply(baseCfg))

	cfg := (&ConfigRequest{
		WindowSize:     ptr(-1),
		Normalization:  ptr("zscore"),
		OutcomeHorizon: ptr("24h"),
	}).apply(baseCfg)
	assert.Equal(t, -1, cfg.WindowSize)
	assert.Equal(t, pattern.NormalizeZScore, cfg.Normalization)
	assert.Equal(t, models.Horizon24h, cfg.OutcomeHorizon)
	assert.Equal(t, baseCfg.TopK, cfg.TopK)
}

func TestSearch_SizeLimits(t *testing.T) {
	srv, _ := newTestServer(t)

	long := make([]float64, maxSeriesPoints+1)
	for i := range long {
		long[i] = float64(i%7) / 10
	}
	aligned := make([]float64, maxAlignedPoints+1)
	copy(aligned, long)

	tests := []struct {
		name string
		body SearchRequest
	}{
		{"query too long", SearchRequest{Query: points(long...)}},
		{"candidate too long", SearchRequest{
			Query:      points(0.1, 0.2, 0.3),
			Candidates: []CandidateRequest{{TokenID: "big", Series: points(long...)}},
		}},
		{"top k too large", SearchRequest{Query: points(0.1, 0.2), Config: &ConfigRequest{TopK: ptr(maxTopK + 1)}}},
		{"alignment on long series", SearchRequest{
			Query:  points(aligned...),
			Config: &ConfigRequest{IncludeAlignment: ptr(true)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/patterns/search", tt.body)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
		})
	}

	// The same long query passes without alignment.
	w := do(t, srv, http.MethodPost, "/api/v1/patterns/search", SearchRequest{Query: points(aligned...)})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSearch_BodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"query":[`)
	for body.Len() < maxSearchBodyBytes {
		body.WriteString(`{"t":"2025-06-01T00:00:00Z","v":0.5},`)
	}
	body.WriteString(`{"t":"2025-06-01T00:00:00Z","v":0.5}]}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patterns/search", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
