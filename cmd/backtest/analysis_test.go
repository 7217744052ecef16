package main

import (
	"context"
	"testing"
	"time"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
	"github.com/rewired-gh/polypattern/internal/storage"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestSummarize(t *testing.T) {
	trials := []Trial{
		{Predicted: models.DirectionUp, Confidence: 0.99, Actual: models.DirectionUp},
		{Predicted: models.DirectionDown, Confidence: 0.92, Actual: models.DirectionDown},
		{Predicted: models.DirectionUp, Confidence: 0.85, Actual: models.DirectionFlat},
		{Predicted: models.DirectionUp, Confidence: 0.3, Actual: models.DirectionDown},
		{Predicted: models.DirectionNeutral, Actual: models.DirectionUp},
	}

	report := summarize(trials, []float64{0.9, 0, 0.5})
	if report.Trials != 5 || report.Neutral != 1 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	want := []ConfidenceBucket{
		{MinConfidence: 0, Calls: 4, Hits: 2},
		{MinConfidence: 0.5, Calls: 3, Hits: 2},
		{MinConfidence: 0.9, Calls: 2, Hits: 2},
	}
	for i, b := range report.Buckets {
		if b != want[i] {
			t.Errorf("bucket[%d] = %+v, want %+v", i, b, want[i])
		}
	}
	if report.Actuals[models.DirectionUp] != 2 || report.Actuals[models.DirectionFlat] != 1 {
		t.Errorf("unexpected actual tallies: %v", report.Actuals)
	}

	if floor, ok := recommendFloor(report, 0.9, 2); !ok || floor != 0.9 {
		t.Errorf("recommendFloor = %v, %v; want 0.9, true", floor, ok)
	}
	if _, ok := recommendFloor(report, 0.9, 3); ok {
		t.Error("expected no floor with three calls at 90%")
	}
}

func TestConfidenceBucketHitRate(t *testing.T) {
	if (ConfidenceBucket{}).HitRate() != 0 {
		t.Error("expected zero hit rate without calls")
	}
	if got := (ConfidenceBucket{Calls: 4, Hits: 3}).HitRate(); got != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", got)
	}
}

func TestEvaluateToken(t *testing.T) {
	store, err := storage.New(10, 1000, storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	points := make([]models.PricePoint, 60)
	for i := range points {
		points[i] = models.PricePoint{TokenID: "hist", Timestamp: base.Add(time.Duration(i) * time.Hour), Price: 0.1 + float64(i)*0.01}
	}
	if err := store.AddPricePoints(points); err != nil {
		t.Fatalf("AddPricePoints failed: %v", err)
	}

	trials, err := evaluateToken(context.Background(), store, "hist", 6, 10, pattern.DefaultConfig())
	if err != nil {
		t.Fatalf("evaluateToken failed: %v", err)
	}
	if len(trials) != 6 {
		t.Fatalf("expected 6 trials, got %d", len(trials))
	}

	// Nothing has a known outcome before the first cutoff.
	if trials[0].Predicted != models.DirectionNeutral {
		t.Errorf("first trial should be NEUTRAL, got %s", trials[0].Predicted)
	}
	// Seven past windows are below the minimum sample.
	if trials[1].Predicted != models.DirectionUp || trials[1].Confidence != 0 {
		t.Errorf("second trial = %s %.3f, want UP 0", trials[1].Predicted, trials[1].Confidence)
	}
	for _, tr := range trials[2:] {
		if !tr.Hit() || tr.Confidence < 0.99 {
			t.Errorf("expected a confident hit at %s, got %+v", tr.At, tr)
		}
	}

	report := summarize(trials, confidenceFloors)
	last := report.Buckets[len(report.Buckets)-1]
	if last.MinConfidence != 0.99 || last.Calls != 4 || last.Hits != 4 {
		t.Errorf("unexpected 0.99 bucket: %+v", last)
	}
}

func TestKnownBefore(t *testing.T) {
	windows := []models.CandidateWindow{
		{TokenID: "a", WindowEnd: base},
		{TokenID: "b", WindowEnd: base.Add(2 * time.Hour)},
		{TokenID: "c", WindowEnd: base.Add(-time.Hour)},
	}
	it := knownBefore(pattern.NewSliceIterator(windows), base.Add(time.Hour), models.Horizon1h)

	var got []string
	for it.Next() {
		got = append(got, it.Candidate().TokenID)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("knownBefore yielded %v, want [a c]", got)
	}
}

func TestKnownBefore_GappedHistory(t *testing.T) {
	store, err := storage.New(10, 1000, storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var points []models.PricePoint
	for i, p := range []float64{0.30, 0.32, 0.35} {
		points = append(points, models.PricePoint{TokenID: "gapped", Timestamp: base.Add(time.Duration(i) * time.Hour), Price: p})
	}
	points = append(points, models.PricePoint{TokenID: "gapped", Timestamp: base.Add(12 * time.Hour), Price: 0.70})
	if err := store.AddPricePoints(points); err != nil {
		t.Fatalf("AddPricePoints failed: %v", err)
	}

	windows, err := store.CandidateWindows(context.Background(), storage.WindowQuery{Length: 3, Stride: 1})
	if err != nil {
		t.Fatalf("CandidateWindows failed: %v", err)
	}

	// The 00:00-02:00 window ends before cutoff-4h, but its 4h outcome comes
	// from the 12:00 point.
	it := knownBefore(windows, base.Add(7*time.Hour), models.Horizon4h)
	for it.Next() {
		c := it.Candidate()
		t.Errorf("window ending %s with outcome at %s passed the cutoff", c.WindowEnd, c.OutcomeTime(models.Horizon4h))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator failed: %v", err)
	}

	windows, err = store.CandidateWindows(context.Background(), storage.WindowQuery{Length: 3, Stride: 1})
	if err != nil {
		t.Fatalf("CandidateWindows failed: %v", err)
	}
	it = knownBefore(windows, base.Add(12*time.Hour), models.Horizon4h)
	if !it.Next() || !it.Candidate().WindowEnd.Equal(base.Add(2*time.Hour)) {
		t.Fatal("expected the first window once its outcome is observed")
	}
}
