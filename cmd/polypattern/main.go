package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/polypattern/internal/api"
	"github.com/rewired-gh/polypattern/internal/config"
	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/polymarket"
	"github.com/rewired-gh/polypattern/internal/scanner"
	"github.com/rewired-gh/polypattern/internal/storage"
	"github.com/rewired-gh/polypattern/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxMarkets, cfg.Storage.MaxPointsPerMarket, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	polyClient := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.CLOBAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.WithRateLimit(cfg.Polymarket.RequestsPerSecond),
		polymarket.WithRetries(cfg.Polymarket.MaxRetries, time.Second),
	)

	scan := scanner.New(store, scanner.Options{
		LookbackPoints:    cfg.Scanner.LookbackPoints,
		WindowStride:      cfg.Scanner.WindowStride,
		CandidateLimit:    cfg.Scanner.CandidateLimit,
		ExcludeOwnHistory: cfg.Scanner.ExcludeOwnHistory,
	}, cfg.Pattern.SearchConfig())

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverDone := make(chan struct{})
	if cfg.Server.Enabled {
		srv := api.NewServer(store, scan, cfg.Server.Mode)
		go func() {
			defer close(serverDone)
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				logger.Error("HTTP API failed: %v", err)
			}
		}()
	} else {
		close(serverDone)
	}

	logger.Info("Starting pattern service (interval: %v, lookback: %d points, horizon: %s, top_k: %d, min_confidence: %.2f)",
		cfg.Polymarket.PollInterval,
		cfg.Scanner.LookbackPoints,
		cfg.Pattern.OutcomeHorizon,
		cfg.Scanner.TopK,
		cfg.Scanner.MinConfidence,
	)
	logger.Debug("Ingest configuration: categories=%v, min_volume_24hr=%.0f, fidelity=%dm, lookback=%v",
		cfg.Polymarket.Categories,
		cfg.Polymarket.MinVolume24hr,
		cfg.Polymarket.HistoryFidelity,
		cfg.Polymarket.HistoryLookback,
	)

	ticker := time.NewTicker(cfg.Polymarket.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	var firstFailure time.Time

	handleCycleResult := func(err error) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			consecutiveFailures++
			logger.Error("Scan cycle failed: %v", err)
			if consecutiveFailures == 1 {
				firstFailure = time.Now()
				if telegramClient != nil {
					if sendErr := telegramClient.SendError(err, consecutiveFailures); sendErr != nil {
						logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
					}
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures, time.Since(firstFailure)); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	runCycle := func(cycleTime time.Time) {
		handleCycleResult(runScanCycle(ctx, polyClient, scan, store, telegramClient, cfg, cycleTime))

		if err := store.RotatePricePoints(); err != nil {
			logger.Warn("Failed to rotate price points: %v", err)
		}
		if err := store.RotateMarkets(); err != nil {
			logger.Warn("Failed to rotate markets: %v", err)
		}
	}

	logger.Debug("Running initial scan cycle")
	runCycle(time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, cleaning up...")
			<-serverDone
			logger.Info("Service stopped")
			return

		case tickTime := <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			runCycle(tickTime)
		}
	}
}

func runScanCycle(
	ctx context.Context,
	polyClient *polymarket.Client,
	scan *scanner.Scanner,
	store *storage.Storage,
	telegramClient *telegram.Client,
	cfg *config.Config,
	cycleTime time.Time,
) error {
	startTime := time.Now()
	logger.Info("Starting scan cycle")

	markets, err := polyClient.FetchMarkets(ctx, cfg.Polymarket.Categories, cfg.Polymarket.MinVolume24hr, cfg.Polymarket.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch markets: %w", err)
	}
	logger.Info("Fetched %d markets from %d categories", len(markets), len(cfg.Polymarket.Categories))

	newMarkets, updatedMarkets, points := 0, 0, 0
	for i := range markets {
		market := &markets[i]

		if existing, err := store.GetMarket(market.ID); err == nil {
			market.CreatedAt = existing.CreatedAt
			if err := store.UpdateMarket(market); err != nil {
				logger.Warn("Failed to update market %s: %v", market.ID, err)
				continue
			}
			updatedMarkets++
		} else {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Warn("Failed to look up market %s: %v", market.ID, err)
				continue
			}
			if err := store.AddMarket(market); err != nil {
				logger.Warn("Failed to add market %s: %v", market.ID, err)
				continue
			}
			newMarkets++
		}

		n, err := ingestHistory(ctx, polyClient, store, market.ID, cfg, cycleTime)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Failed to ingest price history for %s: %v", market.ID, err)
			continue
		}
		points += n
	}
	logger.Debug("Market processing complete: %d new, %d updated, %d price points stored", newMarkets, updatedMarkets, points)

	if !cfg.Scanner.Enabled {
		logger.Info("Scanning disabled, cycle completed in %v", time.Since(startTime))
		return nil
	}

	stored, err := store.GetAllMarkets()
	if err != nil {
		return fmt.Errorf("failed to get markets: %w", err)
	}

	results, scanErrors, err := scan.ScanAll(ctx, convertMarkets(stored))
	if err != nil {
		return fmt.Errorf("failed to scan markets: %w", err)
	}
	for _, scanErr := range scanErrors {
		logger.Warn("Failed to analyze market %s: %v", scanErr.TokenID, scanErr.Err)
	}
	if len(stored) > 0 && len(scanErrors) == len(stored) {
		return fmt.Errorf("all %d markets failed to scan: %w", len(stored), scanErrors[0])
	}

	signals := scanner.RankPredictions(results, cfg.Scanner.MinConfidence, cfg.Scanner.TopK)
	signals = scan.FilterRecentlySent(signals, cfg.Scanner.Cooldown)

	if len(signals) > 0 {
		logger.Info("Ranked predictions: %d markets analyzed, %d signals passed (min_confidence=%.2f)",
			len(results), len(signals), cfg.Scanner.MinConfidence)

		if telegramClient != nil {
			if err := telegramClient.Send(signals, models.Horizon(cfg.Pattern.OutcomeHorizon)); err != nil {
				logger.Error("Failed to send Telegram notification: %v", err)
			} else {
				logger.Info("Sent Telegram notification with %d signals", len(signals))
				scan.RecordNotified(signals)
			}
		} else {
			logger.Debug("Signals found but Telegram notifications disabled")
		}
	} else {
		logger.Info("No confident predictions this cycle (%d markets analyzed)", len(results))
	}

	logger.Info("Scan cycle completed in %v", time.Since(startTime))
	return nil
}

// ingestHistory fetches the price history newer than the last stored point,
// or the configured lookback for a new token.
func ingestHistory(ctx context.Context, polyClient *polymarket.Client, store *storage.Storage,
	tokenID string, cfg *config.Config, now time.Time) (int, error) {
	start := now.Add(-cfg.Polymarket.HistoryLookback)

	last, err := store.LatestSeries(tokenID, 1)
	if err != nil {
		return 0, err
	}
	if len(last) > 0 && last.End().After(start) {
		start = last.End().Add(time.Second)
	}
	if !start.Before(now) {
		return 0, nil
	}

	points, err := polyClient.FetchPriceHistory(ctx, tokenID, start, now, cfg.Polymarket.HistoryFidelity)
	if err != nil {
		if errors.Is(err, polymarket.ErrNoHistory) {
			logger.Debug("No new price history for %s since %s", tokenID, start.Format(time.RFC3339))
			return 0, nil
		}
		return 0, err
	}
	if err := store.AddPricePoints(points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func convertMarkets(markets []*models.Market) []models.Market {
	result := make([]models.Market, len(markets))
	for i, market := range markets {
		result[i] = *market
	}
	return result
}
