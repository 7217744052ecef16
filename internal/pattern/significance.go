package pattern

import "math"

// DefaultSignificanceMinSample is the smallest tally CalculateSignificance
// will test.
const DefaultSignificanceMinSample = 10

// CalculateSignificance returns the two-tailed p-value of observing
// successes out of total under a fair 50% success rate, using the default
// minimum sample size.
func CalculateSignificance(successes, total int) float64 {
	return Significance(successes, total, DefaultSignificanceMinSample)
}

// Significance approximates the binomial test with a normal approximation:
//
//	z = |s/n - 0.5| / sqrt(0.25/n),  p = 2·(1 - Φ(z))
//
// Tallies smaller than minSample are reported as not significant (1.0).
func Significance(successes, total, minSample int) float64 {
	if total < minSample || total <= 0 {
		return 1.0
	}

	n := float64(total)
	z := math.Abs(float64(successes)/n-0.5) / math.Sqrt(0.25/n)
	p := 2 * (1 - NormalCDF(z))

	return math.Max(0, math.Min(1, p))
}

// NormalCDF is the standard normal CDF built on the Abramowitz–Stegun 7.1.26
// rational approximation of erf (|error| ≤ 1.5e-7).
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + erf(x/math.Sqrt2))
}

func erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}

	t := 1 / (1 + p*x)
	y := 1 - ((((a5*t+a4)*t+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)
	return sign * y
}
