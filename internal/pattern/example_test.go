package pattern_test

import (
	"fmt"
	"math"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
)

// ExampleDTW aligns a series with a copy that lingers on its middle value.
// The stretch costs nothing and shows up as a horizontal step in the path.
func ExampleDTW() {
	a := []float64{1, 2, 3}
	b := []float64{1, 2, 2, 3}

	dist, path := pattern.DTW(a, b, pattern.Options{Window: -1, MaxDistance: math.Inf(1), ReturnPath: true})
	fmt.Printf("distance=%.0f\npath=%v\n", dist, path)
	// Output:
	// distance=0
	// path=[{0 0} {1 1} {1 2} {2 3}]
}

// ExampleDistance shows early abandonment: a budget below the true distance
// turns the result into +Inf.
func ExampleDistance() {
	a := []float64{0, 0, 0}
	b := []float64{1, 1, 1}

	fmt.Println(pattern.Distance(a, b, 10))
	fmt.Println(pattern.Distance(a, b, 2))
	// Output:
	// 3
	// +Inf
}

// ExampleSearch ranks two historical windows against a flat query and
// aggregates their 4h outcomes.
func ExampleSearch() {
	up, down := 0.02, -0.05
	corpus := []models.CandidateWindow{
		{TokenID: "identical", Series: seriesOf(0.5, 0.5, 0.5, 0.5), Outcome4h: &up},
		{TokenID: "inverse", Series: seriesOf(0.9, 0.1, 0.9, 0.1), Outcome4h: &down},
	}

	cfg := pattern.DefaultConfig()
	cfg.TopK = 2

	result, err := pattern.Search(seriesOf(0.5, 0.5, 0.5, 0.5), pattern.NewSliceIterator(corpus), cfg)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, m := range result.Matches {
		fmt.Printf("%s distance=%.1f similarity=%.0f %s\n", m.TokenID, m.Distance, m.Similarity, m.Direction)
	}
	fmt.Printf("%s confidence=%.2f expected=%.3f\n", result.Prediction.Direction, result.Prediction.Confidence, result.Prediction.ExpectedMove)
	// Output:
	// identical distance=0.0 similarity=100 UP
	// inverse distance=2.0 similarity=50 DOWN
	// NEUTRAL confidence=0.00 expected=-0.015
}
