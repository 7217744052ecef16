package pattern_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
)

func randomSeries(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

// TestDTW_IdenticalSeries verifies DTW(S,S) == 0 for both memory modes.
func TestDTW_IdenticalSeries(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		s := randomSeries(r, 1+r.Intn(30))

		assert.Equal(t, 0.0, pattern.Distance(s, s, math.Inf(1)), "unconstrained self distance")
		d, path := pattern.WindowedPath(s, s, 2)
		assert.Equal(t, 0.0, d, "windowed self distance")
		require.Len(t, path, len(s), "self alignment is the diagonal")
		for k, c := range path {
			assert.Equal(t, models.Coord{I: k, J: k}, c)
		}
	}
}

// TestDTW_Symmetric verifies the unconstrained variant is symmetric.
func TestDTW_Symmetric(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		a := randomSeries(r, 1+r.Intn(25))
		b := randomSeries(r, 1+r.Intn(25))
		assert.Equal(t, pattern.Distance(a, b, math.Inf(1)), pattern.Distance(b, a, math.Inf(1)))
	}
}

// TestDTW_EmptyInput verifies that an empty side yields +Inf, not an error.
func TestDTW_EmptyInput(t *testing.T) {
	d, path := pattern.DTW([]float64{}, []float64{1, 2, 3}, pattern.DefaultOptions())
	assert.True(t, math.IsInf(d, 1), "empty first sequence should be +Inf")
	assert.Nil(t, path)

	d, _ = pattern.DTW([]float64{1, 2, 3}, nil, pattern.Options{Window: 1, MaxDistance: math.Inf(1), ReturnPath: true})
	assert.True(t, math.IsInf(d, 1), "empty second sequence should be +Inf")
}

// TestDTW_NonFiniteInput verifies NaN never leaks into a distance.
func TestDTW_NonFiniteInput(t *testing.T) {
	d := pattern.Distance([]float64{0, math.NaN(), 1}, []float64{0, 0.5, 1}, math.Inf(1))
	assert.True(t, math.IsInf(d, 1))
}

// TestDTW_WindowZeroIsPointwise checks that w=0 with equal lengths is the
// sum of absolute differences.
func TestDTW_WindowZeroIsPointwise(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 2, 5, 1}
	assert.InDelta(t, 6.0, pattern.WindowedDistance(a, b, 0, math.Inf(1)), 1e-12)

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		n := 1 + r.Intn(20)
		x, y := randomSeries(r, n), randomSeries(r, n)
		var want float64
		for k := range x {
			want += math.Abs(x[k] - y[k])
		}
		assert.InDelta(t, want, pattern.WindowedDistance(x, y, 0, math.Inf(1)), 1e-9)
	}
}

// TestDTW_WindowWidensForLengthMismatch verifies w = max(window, |n-m|).
func TestDTW_WindowWidensForLengthMismatch(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 1, 2, 3, 3}

	d := pattern.WindowedDistance(a, b, 0, math.Inf(1))
	assert.False(t, math.IsInf(d, 1), "band must widen to |n-m|")
	assert.Equal(t, 0.0, d)
}

// TestDTW_PathTieBreak checks the backtracked path of a perfect stretch.
func TestDTW_PathTieBreak(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 2, 2, 3}

	d, path := pattern.DTW(a, b, pattern.Options{Window: -1, MaxDistance: math.Inf(1), ReturnPath: true})
	assert.Equal(t, 0.0, d)
	assert.Equal(t, []models.Coord{{I: 0, J: 0}, {I: 1, J: 1}, {I: 1, J: 2}, {I: 2, J: 3}}, path)
}

// TestDTW_EarlyAbandonment verifies +Inf iff the true distance exceeds the budget.
func TestDTW_EarlyAbandonment(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{1, 1, 1}

	assert.True(t, math.IsInf(pattern.Distance(a, b, 2.9), 1), "over budget")
	assert.Equal(t, 3.0, pattern.Distance(a, b, 3), "budget equal to the distance is accepted")
	assert.Equal(t, 3.0, pattern.Distance(a, b, 10), "under budget is exact")

	r := rand.New(rand.NewSource(4))
	for i := 0; i < 100; i++ {
		x := randomSeries(r, 2+r.Intn(20))
		y := randomSeries(r, 2+r.Intn(20))
		w := r.Intn(5)
		exact := pattern.WindowedDistance(x, y, w, math.Inf(1))
		require.False(t, math.IsInf(exact, 1))

		assert.True(t, math.IsInf(pattern.WindowedDistance(x, y, w, exact*0.9), 1), "tight budget must abandon")
		assert.Equal(t, exact, pattern.WindowedDistance(x, y, w, exact*1.1), "loose budget must be exact")

		withPath, _ := pattern.DTW(x, y, pattern.Options{Window: w, MaxDistance: exact * 0.9, ReturnPath: true})
		assert.True(t, math.IsInf(withPath, 1), "full-matrix mode abandons too")
	}
}

// TestDTW_MemoryModesAgree confirms the rolling-row and full-matrix paths
// compute the same distance.
func TestDTW_MemoryModesAgree(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		x := randomSeries(r, 1+r.Intn(30))
		y := randomSeries(r, 1+r.Intn(30))
		w := r.Intn(8) - 1

		rolling, noPath := pattern.DTW(x, y, pattern.Options{Window: w, MaxDistance: math.Inf(1)})
		full, path := pattern.DTW(x, y, pattern.Options{Window: w, MaxDistance: math.Inf(1), ReturnPath: true})

		assert.Nil(t, noPath)
		assert.Equal(t, full, rolling)
		require.NotEmpty(t, path)
		assert.Equal(t, models.Coord{I: 0, J: 0}, path[0])
		assert.Equal(t, models.Coord{I: len(x) - 1, J: len(y) - 1}, path[len(path)-1])

		var cost float64
		for _, c := range path {
			cost += math.Abs(x[c.I] - y[c.J])
		}
		assert.InDelta(t, full, cost, 1e-9, "path cost must equal the distance")
	}
}

// TestDTW_WindowNeverBeatsUnconstrained verifies a band can only raise the cost.
func TestDTW_WindowNeverBeatsUnconstrained(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	for i := 0; i < 50; i++ {
		x := randomSeries(r, 5+r.Intn(20))
		y := randomSeries(r, 5+r.Intn(20))
		free := pattern.Distance(x, y, math.Inf(1))
		banded := pattern.WindowedDistance(x, y, 1, math.Inf(1))
		assert.LessOrEqual(t, free, banded+1e-12)
	}
}
