package models

import (
	"fmt"
	"time"
)

// Horizon is a fixed forward offset past a window's end at which the
// realized price move is recorded.
type Horizon string

const (
	Horizon1h  Horizon = "1h"
	Horizon4h  Horizon = "4h"
	Horizon24h Horizon = "24h"
)

// Horizons lists every recorded horizon, shortest first.
var Horizons = []Horizon{Horizon1h, Horizon4h, Horizon24h}

// Duration returns the offset the horizon stands for.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon1h:
		return time.Hour
	case Horizon4h:
		return 4 * time.Hour
	case Horizon24h:
		return 24 * time.Hour
	}
	return 0
}

// ParseHorizon parses "1h", "4h" or "24h".
func ParseHorizon(s string) (Horizon, error) {
	switch h := Horizon(s); h {
	case Horizon1h, Horizon4h, Horizon24h:
		return h, nil
	}
	return "", fmt.Errorf("unknown outcome horizon %q", s)
}

// CandidateWindow is a historical window of a token's price series together
// with the realized forward moves observed after it closed.
type CandidateWindow struct {
	TokenID        string
	MarketID       string
	MarketQuestion string
	WindowStart    time.Time
	WindowEnd      time.Time
	Series         TimeSeries

	// Price delta between the window end and the horizon; nil when the
	// history does not reach that far.
	Outcome1h  *float64
	Outcome4h  *float64
	Outcome24h *float64

	// Timestamps of the points each outcome was read from. On gapped
	// histories they can lie well past end+h.
	Outcome1hAt  time.Time
	Outcome4hAt  time.Time
	Outcome24hAt time.Time
}

// Outcome returns the recorded delta for h.
func (c *CandidateWindow) Outcome(h Horizon) (float64, bool) {
	var v *float64
	switch h {
	case Horizon1h:
		v = c.Outcome1h
	case Horizon4h:
		v = c.Outcome4h
	case Horizon24h:
		v = c.Outcome24h
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SetOutcome records the delta for h.
func (c *CandidateWindow) SetOutcome(h Horizon, delta float64) {
	d := delta
	switch h {
	case Horizon1h:
		c.Outcome1h = &d
	case Horizon4h:
		c.Outcome4h = &d
	case Horizon24h:
		c.Outcome24h = &d
	}
}

// SetObservedOutcome records the delta for h together with the timestamp of
// the point it was read from.
func (c *CandidateWindow) SetObservedOutcome(h Horizon, delta float64, at time.Time) {
	c.SetOutcome(h, delta)
	switch h {
	case Horizon1h:
		c.Outcome1hAt = at
	case Horizon4h:
		c.Outcome4hAt = at
	case Horizon24h:
		c.Outcome24hAt = at
	}
}

// OutcomeTime returns when the outcome for h was observed. It is zero when
// the outcome is missing or was set without a timestamp.
func (c *CandidateWindow) OutcomeTime(h Horizon) time.Time {
	switch h {
	case Horizon1h:
		return c.Outcome1hAt
	case Horizon4h:
		return c.Outcome4hAt
	case Horizon24h:
		return c.Outcome24hAt
	}
	return time.Time{}
}
