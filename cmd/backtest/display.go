package main

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/polypattern/internal/models"
)

func printReport(report Report, horizon models.Horizon) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("WALK-FORWARD BACKTEST (horizon %s)\n", horizon)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nTrials: %d (neutral: %d)\n", report.Trials, report.Neutral)
	fmt.Printf("Realized: UP %d, DOWN %d, FLAT %d\n",
		report.Actuals[models.DirectionUp],
		report.Actuals[models.DirectionDown],
		report.Actuals[models.DirectionFlat])

	fmt.Println("\nHit rate by minimum confidence:")
	fmt.Printf("  %-10s %8s %8s %9s\n", "min_conf", "calls", "hits", "hit_rate")
	for _, b := range report.Buckets {
		fmt.Printf("  %-10.2f %8d %8d %8.1f%%\n", b.MinConfidence, b.Calls, b.Hits, b.HitRate()*100)
	}
}

func printRecommendation(report Report, target float64, minCalls int) {
	fmt.Println("\nRECOMMENDATION:")
	fmt.Println(strings.Repeat("-", 60))
	if floor, ok := recommendFloor(report, target, minCalls); ok {
		fmt.Printf("  scanner.min_confidence: %.2f  (hit rate >= %.0f%% over >= %d calls)\n",
			floor, target*100, minCalls)
		return
	}
	fmt.Printf("  No confidence floor reaches a %.0f%% hit rate with %d calls.\n", target*100, minCalls)
	fmt.Println("  Collect more history or widen the lookback before enabling notifications.")
}
