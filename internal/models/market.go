// Package models defines the core domain entities for polypattern.
// These models represent prediction markets, their price histories, the
// windows cut from those histories, and the results of a pattern search.
//
// Terminology (matching Polymarket's own naming):
//   - Event: a Polymarket event page, which groups one or more related markets.
//   - Market: a single yes/no question within an event.
//   - Token: the CLOB outcome token of a market. Price history is kept per
//     YES token, so the token ID is the unit we track.
package models

import (
	"errors"
	"time"
)

// Market represents a single yes/no prediction market whose YES token price
// history is collected and searched for recurring patterns.
type Market struct {
	ID             string    `json:"id"`              // YES token ID (CLOB asset ID)
	EventID        string    `json:"event_id"`        // Parent Polymarket event ID
	MarketID       string    `json:"market_id"`       // Polymarket market ID
	MarketQuestion string    `json:"market_question"` // Yes/no question for this market
	Title          string    `json:"title"`           // Parent event title
	EventURL       string    `json:"event_url"`       // URL to the parent Polymarket event page
	Category       string    `json:"category"`
	YesProbability float64   `json:"yes_probability"` // Current Yes probability (0–1)
	Volume24hr     float64   `json:"volume_24hr"`     // 24-hour volume in USD (event-level)
	Liquidity      float64   `json:"liquidity"`       // Current liquidity in USD (event-level)
	Active         bool      `json:"active"`
	Closed         bool      `json:"closed"`
	LastUpdated    time.Time `json:"last_updated"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks that all market fields are valid.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market token ID must not be empty")
	}
	if m.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.MarketQuestion == "" && m.Title == "" {
		return errors.New("market question or event title must be set")
	}
	if m.YesProbability < 0.0 || m.YesProbability > 1.0 {
		return errors.New("yes probability must be between 0.0 and 1.0")
	}
	if m.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	if m.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if m.LastUpdated.After(time.Now()) {
		return errors.New("last updated must not be in the future")
	}
	if m.CreatedAt.After(m.LastUpdated) {
		return errors.New("created at must be <= last updated")
	}
	return nil
}

// Question returns the most specific human-readable question for the market.
func (m *Market) Question() string {
	if m.MarketQuestion != "" {
		return m.MarketQuestion
	}
	return m.Title
}
