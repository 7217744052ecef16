// Command backtest replays stored price histories through the pattern
// engine and reports how often confident predictions were right.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/polypattern/internal/config"
	"github.com/rewired-gh/polypattern/internal/logger"
	"github.com/rewired-gh/polypattern/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	tokenID    = flag.String("token", "", "Only evaluate this token (default: every stored market)")
	step       = flag.Int("step", 6, "Points between consecutive evaluation cutoffs")
	target     = flag.Float64("target", 0.6, "Hit rate the recommended confidence floor must reach")
	minCalls   = flag.Int("min-calls", 30, "Calls a confidence floor needs before it can be recommended")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *step < 1 {
		log.Fatalf("-step must be at least 1")
	}
	logger.Init(cfg.Logging.Level, "text")

	store, err := storage.New(cfg.Storage.MaxMarkets, cfg.Storage.MaxPointsPerMarket, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := []string{*tokenID}
	if *tokenID == "" {
		markets, err := store.GetAllMarkets()
		if err != nil {
			logger.Fatal("Failed to list markets: %v", err)
		}
		tokens = tokens[:0]
		for _, m := range markets {
			tokens = append(tokens, m.ID)
		}
	}

	searchCfg := cfg.Pattern.SearchConfig()
	var trials []Trial
	for _, id := range tokens {
		t, err := evaluateToken(ctx, store, id, cfg.Scanner.LookbackPoints, *step, searchCfg)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("Backtest interrupted")
				break
			}
			logger.Warn("Failed to evaluate %s: %v", id, err)
			continue
		}
		logger.Debug("Evaluated %s: %d trials", id, len(t))
		trials = append(trials, t...)
	}

	report := summarize(trials, confidenceFloors)
	printReport(report, searchCfg.OutcomeHorizon)
	printRecommendation(report, *target, *minCalls)
}
