package models

import "time"

// Direction is the classified sign of a price move, or the resolved call of
// a prediction.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionFlat    Direction = "FLAT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Query is the window under analysis.
type Query struct {
	StartTime  time.Time  `json:"startTime"`
	EndTime    time.Time  `json:"endTime"`
	Data       TimeSeries `json:"data"`
	Normalized []float64  `json:"normalized"`
}

// Coord is one aligned (query index, candidate index) pair of a warping path.
type Coord struct {
	I int `json:"i"`
	J int `json:"j"`
}

// PatternMatch is a candidate window scored against the query.
type PatternMatch struct {
	TokenID        string    `json:"tokenId"`
	MarketID       string    `json:"marketId,omitempty"`
	MarketQuestion string    `json:"marketQuestion,omitempty"`
	WindowStart    time.Time `json:"windowStart"`
	WindowEnd      time.Time `json:"windowEnd"`
	Distance       float64   `json:"distance"`
	Similarity     float64   `json:"similarity"`
	Outcome1h      *float64  `json:"outcome1h,omitempty"`
	Outcome4h      *float64  `json:"outcome4h,omitempty"`
	Outcome24h     *float64  `json:"outcome24h,omitempty"`
	Direction      Direction `json:"direction,omitempty"`
	Magnitude      *float64  `json:"magnitude,omitempty"`
	PatternData    []float64 `json:"patternData,omitempty"`
	Path           []Coord   `json:"path,omitempty"`
}

// Statistics aggregates the kept matches. Percentages are over matches that
// carry an outcome at the configured horizon.
type Statistics struct {
	TotalMatches   int     `json:"totalMatches"`
	UpCount        int     `json:"upCount"`
	DownCount      int     `json:"downCount"`
	FlatCount      int     `json:"flatCount"`
	UpPercentage   float64 `json:"upPercentage"`
	DownPercentage float64 `json:"downPercentage"`
	FlatPercentage float64 `json:"flatPercentage"`
	AvgUpMove      float64 `json:"avgUpMove"`
	AvgDownMove    float64 `json:"avgDownMove"`
	AvgDistance    float64 `json:"avgDistance"`
}

// Prediction is the directional call derived from the matches.
type Prediction struct {
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`
	ExpectedMove float64   `json:"expectedMove"`
}

// SearchDiagnostics counts what happened to every candidate of a search.
type SearchDiagnostics struct {
	Scanned          int `json:"scanned"`
	SkippedLength    int `json:"skippedLength"`
	SkippedInvalid   int `json:"skippedInvalid"`
	PrunedLowerBound int `json:"prunedLowerBound"`
	Abandoned        int `json:"abandoned"`
	// Scored candidates entered the ranked list. Rejected ones were fully
	// computed but tied the K-th distance of a full list.
	Scored   int `json:"scored"`
	Rejected int `json:"rejected"`
}

// PatternSearchResult is the full response of a pattern search.
type PatternSearchResult struct {
	Query       Query             `json:"query"`
	Matches     []PatternMatch    `json:"matches"`
	Statistics  Statistics        `json:"statistics"`
	Prediction  Prediction        `json:"prediction"`
	Diagnostics SearchDiagnostics `json:"diagnostics"`
}
