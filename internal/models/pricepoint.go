package models

import (
	"errors"
	"math"
	"time"
)

// PricePoint is a single observed YES-token price.
type PricePoint struct {
	TokenID   string    `json:"token_id"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Validate checks that the price point is usable.
func (p *PricePoint) Validate() error {
	if p.TokenID == "" {
		return errors.New("token ID must not be empty")
	}
	if p.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return errors.New("price must be finite")
	}
	if p.Price < 0.0 || p.Price > 1.0 {
		return errors.New("price must be between 0.0 and 1.0")
	}
	return nil
}
