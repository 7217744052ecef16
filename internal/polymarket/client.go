// Package polymarket fetches market listings from the Gamma API and YES-token
// price histories from the CLOB API.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/models"
)

// ErrNoHistory is returned when the CLOB API has no price points for a token
// in the requested range.
var ErrNoHistory = errors.New("no price history")

// Client provides access to Polymarket API
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	maxRetries    int
	retryInterval time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit caps outgoing requests per second across both APIs.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRetries sets how many times a failed request is retried and the
// initial backoff between attempts.
func WithRetries(maxRetries int, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryInterval = initialInterval
	}
}

// PolymarketEvent represents an event from the Gamma API
type PolymarketEvent struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Active      bool               `json:"active"`
	Closed      bool               `json:"closed"`
	Volume24hr  float64            `json:"volume24hr"`
	Liquidity   float64            `json:"liquidity"`
	Markets     []PolymarketMarket `json:"markets"`
	Tags        []PolymarketTag    `json:"tags"`
}

// PolymarketMarket represents a market inside a Gamma event. Outcomes,
// OutcomePrices and ClobTokenIds are JSON-encoded arrays inside strings.
type PolymarketMarket struct {
	ID            string `json:"id"`
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	ClobTokenIds  string `json:"clobTokenIds"`
	Closed        bool   `json:"closed"`
}

// PolymarketTag is an event tag; its slug doubles as the category.
type PolymarketTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// historyResponse is the CLOB /prices-history payload.
type historyResponse struct {
	History []struct {
		T int64   `json:"t"`
		P float64 `json:"p"`
	} `json:"history"`
}

// NewClient creates a new Polymarket client
func NewClient(gammaURL, clobURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		gammaURL: strings.TrimRight(gammaURL, "/"),
		clobURL:  strings.TrimRight(clobURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:       rate.NewLimiter(rate.Limit(5), 5),
		maxRetries:    3,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMarkets lists open markets of active events, keeping events tagged
// with one of categories (any when empty) whose 24h volume is at least
// minVolume24hr. Each market is identified by its YES token.
func (c *Client) FetchMarkets(ctx context.Context, categories []string, minVolume24hr float64, limit int) ([]models.Market, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	params.Set("limit", strconv.Itoa(limit))

	var events []PolymarketEvent
	if err := c.getJSON(ctx, c.gammaURL+"/events?"+params.Encode(), &events); err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	categorySet := make(map[string]bool, len(categories))
	for _, cat := range categories {
		categorySet[strings.ToLower(cat)] = true
	}

	now := time.Now()
	var markets []models.Market
	for _, e := range events {
		category, ok := matchCategory(e, categorySet)
		if !ok || e.Volume24hr < minVolume24hr {
			continue
		}

		for _, pm := range e.Markets {
			if pm.Closed {
				continue
			}
			yes, _, err := parseMarketProbabilities(pm)
			if err != nil {
				logger.Debug("Skipping market %s of event %s: %v", pm.ID, e.ID, err)
				continue
			}
			token, err := parseYesToken(pm)
			if err != nil {
				logger.Debug("Skipping market %s of event %s: %v", pm.ID, e.ID, err)
				continue
			}

			markets = append(markets, models.Market{
				ID:             token,
				EventID:        e.ID,
				MarketID:       pm.ID,
				MarketQuestion: pm.Question,
				Title:          e.Title,
				EventURL:       eventURL(e),
				Category:       category,
				YesProbability: yes,
				Volume24hr:     e.Volume24hr,
				Liquidity:      e.Liquidity,
				Active:         e.Active,
				Closed:         e.Closed,
				LastUpdated:    now,
				CreatedAt:      now,
			})
		}
	}

	return markets, nil
}

// FetchPriceHistory retrieves the YES-token price history between start and
// end at the given resolution in minutes.
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelity int) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("startTs", strconv.FormatInt(start.Unix(), 10))
	params.Set("endTs", strconv.FormatInt(end.Unix(), 10))
	params.Set("fidelity", strconv.Itoa(fidelity))

	var resp historyResponse
	if err := c.getJSON(ctx, c.clobURL+"/prices-history?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", tokenID, err)
	}

	points := make([]models.PricePoint, 0, len(resp.History))
	for _, h := range resp.History {
		p := models.PricePoint{
			TokenID:   tokenID,
			Timestamp: time.Unix(h.T, 0).UTC(),
			Price:     h.P,
		}
		if err := p.Validate(); err != nil {
			continue
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("token %s: %w", tokenID, ErrNoHistory)
	}
	return points, nil
}

// matchCategory returns the first tag slug found in categories. With no
// categories configured every event matches under its first tag.
func matchCategory(e PolymarketEvent, categories map[string]bool) (string, bool) {
	if len(categories) == 0 {
		if len(e.Tags) > 0 {
			return strings.ToLower(e.Tags[0].Slug), true
		}
		return strings.ToLower(e.Category), true
	}
	if categories[strings.ToLower(e.Category)] {
		return strings.ToLower(e.Category), true
	}
	for _, tag := range e.Tags {
		if slug := strings.ToLower(tag.Slug); categories[slug] {
			return slug, true
		}
	}
	return "", false
}

func eventURL(e PolymarketEvent) string {
	if e.Slug == "" {
		return ""
	}
	return "https://polymarket.com/event/" + e.Slug
}

// parseMarketProbabilities extracts Yes/No prices from the JSON-string fields.
func parseMarketProbabilities(m PolymarketMarket) (yes, no float64, err error) {
	var outcomes, prices []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return 0, 0, fmt.Errorf("invalid outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return 0, 0, fmt.Errorf("invalid outcome prices: %w", err)
	}
	if len(outcomes) != len(prices) {
		return 0, 0, fmt.Errorf("outcomes and prices differ in length (%d vs %d)", len(outcomes), len(prices))
	}

	foundYes := false
	for i, outcome := range outcomes {
		p, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid price %q: %w", prices[i], err)
		}
		switch strings.ToLower(outcome) {
		case "yes":
			yes = p
			foundYes = true
		case "no":
			no = p
		}
	}
	if !foundYes {
		return 0, 0, errors.New("market has no Yes outcome")
	}
	return yes, no, nil
}

// parseYesToken returns the CLOB token ID paired with the Yes outcome.
func parseYesToken(m PolymarketMarket) (string, error) {
	var outcomes, tokens []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return "", fmt.Errorf("invalid outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(m.ClobTokenIds), &tokens); err != nil {
		return "", fmt.Errorf("invalid clob token ids: %w", err)
	}
	for i, outcome := range outcomes {
		if strings.EqualFold(outcome, "yes") && i < len(tokens) && tokens[i] != "" {
			return tokens[i], nil
		}
	}
	return "", errors.New("no token for the Yes outcome")
}

// containsJSON reports whether a Content-Type header denotes JSON.
func containsJSON(contentType string) bool {
	const prefix = "application/json"
	if !strings.HasPrefix(contentType, prefix) {
		return false
	}
	rest := contentType[len(prefix):]
	return rest == "" || rest[0] == ';'
}

// HTTPStatusError represents a non-200 response
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// getJSON performs a rate-limited GET with exponential backoff and decodes
// the JSON body into out. Transport errors and 5xx responses are retried;
// anything else fails immediately.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&HTTPStatusError{StatusCode: resp.StatusCode})
		}
		if ct := resp.Header.Get("Content-Type"); !containsJSON(ct) {
			return backoff.Permanent(fmt.Errorf("unexpected content type %q", ct))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.Warn("Request to %s failed, retrying in %s: %v", rawURL, wait, err)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx), notify)
}
