package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polypattern/internal/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h"},
		{2 * time.Hour, "2h"},
		{24 * time.Hour, "24h"},
		{30 * time.Minute, "30m"},
		{1 * time.Minute, "1m"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"Will BTC hit $100k?", "Will BTC hit $100k?"},
		{"62.5%", "62\\.5%"},
		{"a_b*c[d](e)", "a\\_b\\*c\\[d\\]\\(e\\)"},
		{"x-y+z=1!", "x\\-y\\+z\\=1\\!"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSignals(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	signals := []models.Signal{
		{
			TokenID:        "tok-1",
			MarketQuestion: "Will the Fed cut rates?",
			EventURL:       "https://polymarket.com/event/fed-cut",
			Direction:      models.DirectionUp,
			Confidence:     0.987,
			ExpectedMove:   0.024,
			MatchCount:     20,
			UpCount:        17,
			DownCount:      2,
			CurrentPrice:   0.41,
			DetectedAt:     at,
		},
		{
			TokenID:        "tok-2",
			MarketQuestion: "Will it rain (tomorrow)?",
			Direction:      models.DirectionDown,
			Confidence:     0.9,
			ExpectedMove:   -0.01,
			MatchCount:     12,
			UpCount:        1,
			DownCount:      10,
			CurrentPrice:   0.7,
			DetectedAt:     at,
		},
	}

	msg := formatSignals(signals, models.Horizon4h)

	for _, want := range []string{
		"📅 Detected: 2025\\-06\\-01 12:30:00",
		"⏱ Horizon: 4h",
		"1\\. [Will the Fed cut rates?](https://polymarket.com/event/fed-cut)",
		"📈 UP with *98\\.7%* confidence",
		"💰 Now: 41\\.0%, expected move: \\+2\\.4 pp",
		"🧮 Matches: 20 \\(17 up, 2 down\\)",
		"2\\. Will it rain \\(tomorrow\\)?",
		"📉 DOWN with *90\\.0%* confidence",
		"expected move: \\-1\\.0 pp",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatSignals_Empty(t *testing.T) {
	msg := formatSignals(nil, models.Horizon1h)
	if strings.Contains(msg, "Detected") {
		t.Errorf("unexpected detection time in empty message: %s", msg)
	}
	if !strings.Contains(msg, "Horizon: 1h") {
		t.Errorf("expected horizon line, got %s", msg)
	}
}

func TestFormatErrorAndRecovery(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	msg := formatError(errors.New("fetch `markets` failed"), 3, at)
	if !strings.Contains(msg, "Consecutive failures: 3") {
		t.Errorf("missing failure count: %s", msg)
	}
	if !strings.Contains(msg, "fetch \\`markets\\` failed") {
		t.Errorf("error text not escaped for code span: %s", msg)
	}

	rec := formatRecovery(4, 90*time.Minute)
	if !strings.Contains(rec, "Failed cycles: 4") || !strings.Contains(rec, "Downtime: 1h") {
		t.Errorf("unexpected recovery message: %s", rec)
	}
}
