// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats ranked pattern predictions into human-readable messages and handles
// delivery with retry logic for reliability.
//
// Messages use MarkdownV2, so every piece of dynamic text is escaped before it
// is embedded.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send notifies the chat about ranked predictions for the given horizon.
func (c *Client) Send(signals []models.Signal, horizon models.Horizon) error {
	return c.send(formatSignals(signals, horizon))
}

// SendError reports a failed scan cycle.
func (c *Client) SendError(err error, consecutiveFailures int) error {
	return c.send(formatError(err, consecutiveFailures, time.Now()))
}

// SendRecovery reports that scans succeed again after failing.
func (c *Client) SendRecovery(failedCycles int, downtime time.Duration) error {
	return c.send(formatRecovery(failedCycles, downtime))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSignals formats predictions into a Telegram message
func formatSignals(signals []models.Signal, horizon models.Horizon) string {
	var b strings.Builder
	b.WriteString("🔮 *Pattern Predictions*\n\n")

	if len(signals) > 0 {
		dateStr := escapeMarkdownV2(signals[0].DetectedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "📅 Detected: %s\n", dateStr)
	}
	fmt.Fprintf(&b, "⏱ Horizon: %s\n\n", escapeMarkdownV2(formatDuration(horizon.Duration())))

	for i, s := range signals {
		directionEmoji := "📈"
		if s.Direction == models.DirectionDown {
			directionEmoji = "📉"
		}

		titleLink := escapeMarkdownV2(s.MarketQuestion)
		if s.EventURL != "" {
			titleLink = fmt.Sprintf("[%s](%s)", titleLink, escapeLinkURL(s.EventURL))
		}

		confidenceStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", s.Confidence*100))
		priceStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", s.CurrentPrice*100))
		moveStr := escapeMarkdownV2(fmt.Sprintf("%+.1f pp", s.ExpectedMove*100))

		fmt.Fprintf(&b, "%d\\. %s\n", i+1, titleLink)
		fmt.Fprintf(&b, "   %s %s with *%s* confidence\n", directionEmoji, s.Direction, confidenceStr)
		fmt.Fprintf(&b, "   💰 Now: %s, expected move: %s\n", priceStr, moveStr)
		fmt.Fprintf(&b, "   🧮 Matches: %d \\(%d up, %d down\\)\n\n", s.MatchCount, s.UpCount, s.DownCount)
	}

	return b.String()
}

func formatError(err error, consecutiveFailures int, at time.Time) string {
	return fmt.Sprintf("🚨 *Scan cycle failed*\n\n📅 %s\n🔁 Consecutive failures: %d\n\n`%s`",
		escapeMarkdownV2(at.Format("2006-01-02 15:04:05")),
		consecutiveFailures,
		escapeCode(err.Error()))
}

func formatRecovery(failedCycles int, downtime time.Duration) string {
	return fmt.Sprintf("✅ *Scanning recovered*\n\nFailed cycles: %d\nDowntime: %s",
		failedCycles, escapeMarkdownV2(formatDuration(downtime)))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeLinkURL escapes the characters MarkdownV2 reserves inside (...).
func escapeLinkURL(url string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
}

// escapeCode escapes the characters MarkdownV2 reserves inside `...`.
func escapeCode(text string) string {
	return strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(text)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
