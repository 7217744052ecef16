package pattern

import (
	"math"

	"github.com/rewired-gh/polypattern/internal/models"
)

// Options configures a DTW computation.
//
// Fields:
//   - Window: Sakoe–Chiba half-width |i-j| ≤ w. Negative means
//     unconstrained. The effective width is never smaller than |n-m| so a
//     path always exists.
//   - MaxDistance: early-abandonment budget. Distances above it come back
//     as +Inf. math.Inf(1) disables the budget.
//   - ReturnPath: keep the full matrix and backtrack the warping path.
//     Without it only two rolling rows are kept.
type Options struct {
	Window      int
	MaxDistance float64
	ReturnPath  bool
}

// DefaultOptions returns unconstrained, unbudgeted, distance-only options.
func DefaultOptions() Options {
	return Options{
		Window:      -1,
		MaxDistance: math.Inf(1),
	}
}

// DTW computes the Dynamic Time Warping distance.
//
// Description:
//
//	Minimal cumulative cost of aligning a and b with pointwise cost |a_i-b_j|
//	and the three classic moves (match, insertion, deletion):
//
//	  D[0][0] = 0, D[i][0] = D[0][j] = +Inf
//	  D[i][j] = |a[i-1]-b[j-1]| + min(D[i-1][j-1], D[i-1][j], D[i][j-1])
//
//	Only cells with |i-j| ≤ w are evaluated; w = max(Window, |n-m|).
//
// Memory:
//   - ReturnPath=false: two rolling rows, O(m).
//   - ReturnPath=true: full (n+1)×(m+1) matrix, O(n·m), plus backtracking.
//
// Early abandonment:
//
//	After each row the smallest value written to it is compared with
//	MaxDistance. Every path crosses every row and costs are non-negative, so
//	once that minimum exceeds the budget the final distance must too and the
//	computation stops with +Inf. A final distance above the budget is also
//	reported as +Inf; anything else is exact.
//
// Degenerate input:
//
//	An empty or non-finite input yields +Inf ("cannot compare"), never an
//	error.
//
// Path:
//
//	Backtracks from (n,m) to (1,1) preferring the diagonal when it is no
//	worse than both neighbours, then left (j-1) over up (i-1). Coordinates
//	are 0-based and ordered from the start of both series.
func DTW(a, b []float64, opts Options) (float64, []models.Coord) {
	n, m := len(a), len(b)
	if n == 0 || m == 0 || !allFinite(a) || !allFinite(b) {
		return math.Inf(1), nil
	}

	budget := opts.MaxDistance
	if math.IsNaN(budget) {
		budget = math.Inf(1)
	}
	w := bandWidth(n, m, opts.Window)

	if opts.ReturnPath {
		return dtwFullMatrix(a, b, w, budget)
	}
	return dtwRollingRows(a, b, w, budget), nil
}

// Distance is the unconstrained DTW distance with an abandonment budget.
func Distance(a, b []float64, maxDistance float64) float64 {
	d, _ := DTW(a, b, Options{Window: -1, MaxDistance: maxDistance})
	return d
}

// WindowedDistance is the Sakoe–Chiba constrained DTW distance with an
// abandonment budget.
func WindowedDistance(a, b []float64, window int, maxDistance float64) float64 {
	d, _ := DTW(a, b, Options{Window: window, MaxDistance: maxDistance})
	return d
}

// WindowedPath returns the constrained distance together with its warping
// path.
func WindowedPath(a, b []float64, window int) (float64, []models.Coord) {
	return DTW(a, b, Options{Window: window, MaxDistance: math.Inf(1), ReturnPath: true})
}

// bandWidth returns the effective Sakoe–Chiba half-width for lengths n, m.
func bandWidth(n, m, window int) int {
	diff := abs(n - m)
	if window < 0 {
		return max(n, m)
	}
	return max(window, diff)
}

// bandRange returns the 1-based column range evaluated in row i.
func bandRange(i, m, w int) (lo, hi int) {
	return max(1, i-w), min(m, i+w)
}

func dtwRollingRows(a, b []float64, w int, budget float64) float64 {
	n, m := len(a), len(b)
	inf := math.Inf(1)

	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = inf
		curr[j] = inf
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		lo, hi := bandRange(i, m, w)

		// The band only moves right, so clearing one cell either side of it
		// is enough to hide values left over from row i-2.
		for j := lo - 1; j <= min(m, hi+1); j++ {
			curr[j] = inf
		}

		rowMin := inf
		for j := lo; j <= hi; j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			curr[j] = cost + min3(prev[j-1], prev[j], curr[j-1])
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > budget {
			return inf
		}
		prev, curr = curr, prev
	}

	if prev[m] > budget {
		return inf
	}
	return prev[m]
}

func dtwFullMatrix(a, b []float64, w int, budget float64) (float64, []models.Coord) {
	n, m := len(a), len(b)
	inf := math.Inf(1)

	dp := make([][]float64, n+1)
	for i := range dp {
		dp[i] = make([]float64, m+1)
		for j := range dp[i] {
			dp[i][j] = inf
		}
	}
	dp[0][0] = 0

	for i := 1; i <= n; i++ {
		lo, hi := bandRange(i, m, w)
		rowMin := inf
		for j := lo; j <= hi; j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			dp[i][j] = cost + min3(dp[i-1][j-1], dp[i-1][j], dp[i][j-1])
			if dp[i][j] < rowMin {
				rowMin = dp[i][j]
			}
		}
		if rowMin > budget {
			return inf, nil
		}
	}

	distance := dp[n][m]
	if distance > budget {
		return inf, nil
	}
	return distance, backtrack(dp, n, m)
}

func backtrack(dp [][]float64, n, m int) []models.Coord {
	path := make([]models.Coord, 0, n+m)
	i, j := n, m
	for {
		path = append(path, models.Coord{I: i - 1, J: j - 1})
		if i == 1 && j == 1 {
			break
		}

		diag, left, up := dp[i-1][j-1], dp[i][j-1], dp[i-1][j]
		switch {
		case diag <= left && diag <= up:
			i--
			j--
		case left <= up:
			j--
		default:
			i--
		}
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// abs returns the absolute value of an int.
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// min3 returns the minimum of three float64 values.
func min3(a, b, c float64) float64 {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
