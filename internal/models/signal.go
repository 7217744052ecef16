package models

import (
	"errors"
	"time"
)

// Signal is a ranked, notifiable prediction derived from a pattern search.
type Signal struct {
	ID             string    `json:"id"`
	TokenID        string    `json:"token_id"`
	MarketQuestion string    `json:"market_question"`
	EventURL       string    `json:"event_url,omitempty"`
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	ExpectedMove   float64   `json:"expected_move"`
	MatchCount     int       `json:"match_count"`
	UpCount        int       `json:"up_count"`
	DownCount      int       `json:"down_count"`
	CurrentPrice   float64   `json:"current_price"`
	DetectedAt     time.Time `json:"detected_at"`
	Notified       bool      `json:"notified"`
}

// Validate checks that all signal fields are valid.
func (s *Signal) Validate() error {
	if s.ID == "" {
		return errors.New("signal ID must not be empty")
	}
	if s.TokenID == "" {
		return errors.New("token ID must not be empty")
	}
	if s.Direction != DirectionUp && s.Direction != DirectionDown {
		return errors.New("direction must be UP or DOWN")
	}
	if s.Confidence < 0.0 || s.Confidence > 1.0 {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	if s.MatchCount < s.UpCount+s.DownCount {
		return errors.New("match count must cover up and down counts")
	}
	if s.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}
