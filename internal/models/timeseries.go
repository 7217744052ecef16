package models

import (
	"math"
	"sort"
	"time"
)

// Point is one (timestamp, value) observation of a series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeries is an ordered sequence of points with strictly increasing
// timestamps. Build it with NewTimeSeries to get that guarantee.
type TimeSeries []Point

// NewTimeSeries sorts points by timestamp, drops non-finite values and
// collapses equal timestamps so that the later point in input order wins.
func NewTimeSeries(points []Point) TimeSeries {
	clean := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		clean = append(clean, p)
	}

	// Stable sort keeps input order among equal timestamps so the
	// overwrite below picks the last one supplied.
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Timestamp.Before(clean[j].Timestamp)
	})

	series := make(TimeSeries, 0, len(clean))
	for _, p := range clean {
		if n := len(series); n > 0 && series[n-1].Timestamp.Equal(p.Timestamp) {
			series[n-1] = p
			continue
		}
		series = append(series, p)
	}
	return series
}

// SeriesFromPrices converts stored price points into a time series.
func SeriesFromPrices(prices []PricePoint) TimeSeries {
	points := make([]Point, len(prices))
	for i, p := range prices {
		points[i] = Point{Timestamp: p.Timestamp, Value: p.Price}
	}
	return NewTimeSeries(points)
}

// Values returns the raw values in timestamp order.
func (ts TimeSeries) Values() []float64 {
	values := make([]float64, len(ts))
	for i, p := range ts {
		values[i] = p.Value
	}
	return values
}

// Start returns the first timestamp, or the zero time for an empty series.
func (ts TimeSeries) Start() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[0].Timestamp
}

// End returns the last timestamp, or the zero time for an empty series.
func (ts TimeSeries) End() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[len(ts)-1].Timestamp
}

// ValueAtOrAfter returns the value of the first point whose timestamp is not
// before t.
func (ts TimeSeries) ValueAtOrAfter(t time.Time) (float64, bool) {
	p, ok := ts.PointAtOrAfter(t)
	return p.Value, ok
}

// PointAtOrAfter returns the first point whose timestamp is not before t.
func (ts TimeSeries) PointAtOrAfter(t time.Time) (Point, bool) {
	i := sort.Search(len(ts), func(i int) bool {
		return !ts[i].Timestamp.Before(t)
	})
	if i == len(ts) {
		return Point{}, false
	}
	return ts[i], true
}

// Finite reports whether every value is a finite number.
func (ts TimeSeries) Finite() bool {
	for _, p := range ts {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return false
		}
	}
	return true
}
