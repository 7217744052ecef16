package pattern

import "math"

// Envelope returns, for every query index i in [0,n), the minimum and maximum
// of candidate over [i-w', i+w'] clipped to its bounds, where w' is the same
// effective band width WindowedDistance uses for lengths n and len(candidate).
func Envelope(candidate []float64, n, window int) (lower, upper []float64) {
	m := len(candidate)
	lower = make([]float64, n)
	upper = make([]float64, n)
	if n == 0 || m == 0 {
		return lower, upper
	}

	w := bandWidth(n, m, window)
	for i := 0; i < n; i++ {
		lo, hi := max(0, i-w), min(m-1, i+w)
		l, u := candidate[lo], candidate[lo]
		for _, v := range candidate[lo+1 : hi+1] {
			l = math.Min(l, v)
			u = math.Max(u, v)
		}
		lower[i] = l
		upper[i] = u
	}
	return lower, upper
}

// LBKeogh is a lower bound on WindowedDistance(query, candidate, window, +Inf).
// Each query point aligns with at least one candidate point inside its band,
// and that pointwise cost is at least the point's excess over the band's
// envelope. The bound is the Euclidean norm of those excesses, which never
// exceeds their sum. Empty input yields 0.
func LBKeogh(query, candidate []float64, window int) float64 {
	lower, upper := Envelope(candidate, len(query), window)
	if len(candidate) == 0 {
		return 0
	}

	var sum float64
	for i, q := range query {
		switch {
		case q > upper[i]:
			d := q - upper[i]
			sum += d * d
		case q < lower[i]:
			d := lower[i] - q
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}
