package choropleth

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"
)

// Scale is an ordered threshold classifier over [Min, Max].
//
// A value v falls in bucket i when Boundaries[i-1] <= v < Boundaries[i],
// treating Boundaries[-1] as -Inf and Boundaries[len] as +Inf. A value equal
// to a boundary belongs to the higher bucket.
type Scale struct {
	Boundaries []float64 `json:"boundaries"`
	Palette    []string  `json:"palette"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
}

// BuildScale divides [min(values), max(values)] into bucketCount
// equal-width bands and pairs each band with a palette colour.
func BuildScale(values []float64, bucketCount int, palette []string) (*Scale, error) {
	if bucketCount < 1 {
		return nil, eris.Wrapf(ErrInvalidConfiguration, "bucket count %d < 1", bucketCount)
	}
	if len(palette) != bucketCount {
		return nil, eris.Wrapf(ErrInvalidConfiguration, "palette has %d colors, want %d", len(palette), bucketCount)
	}
	if len(values) == 0 {
		return nil, eris.Wrap(ErrInvalidConfiguration, "no values to classify")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.Wrapf(ErrInvalidConfiguration, "value %d is not finite", i)
		}
	}

	lo, err := stats.Min(values)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: min")
	}
	hi, err := stats.Max(values)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: max")
	}

	step := (hi - lo) / float64(bucketCount)
	boundaries := make([]float64, bucketCount-1)
	for k := 1; k < bucketCount; k++ {
		boundaries[k-1] = lo + float64(k)*step
	}
	if hi > lo && !separates(boundaries, lo, hi) {
		return nil, eris.Wrapf(ErrInvalidConfiguration,
			"range [%g, %g] too narrow to split into %d buckets at float64 precision", lo, hi, bucketCount)
	}

	return &Scale{
		Boundaries: boundaries,
		Palette:    append([]string(nil), palette...),
		Min:        lo,
		Max:        hi,
	}, nil
}

// separates reports whether boundaries lie strictly inside (lo, hi) and
// strictly increase, so that no bucket is empty by rounding.
func separates(boundaries []float64, lo, hi float64) bool {
	prev := lo
	for _, b := range boundaries {
		if !(b > prev) {
			return false
		}
		prev = b
	}
	return prev < hi
}

// Buckets returns the number of colour buckets.
func (s *Scale) Buckets() int {
	return len(s.Palette)
}

// Classify returns the bucket index for v. NaN is Unclassified.
func (s *Scale) Classify(v float64) int {
	if math.IsNaN(v) {
		return Unclassified
	}
	// Count of boundaries <= v; ties go to the higher bucket.
	return sort.Search(len(s.Boundaries), func(i int) bool {
		return s.Boundaries[i] > v
	})
}

// ClassifyRecord classifies a joined record, returning Unclassified when it
// carries no statistic.
func (s *Scale) ClassifyRecord(r JoinedRecord) int {
	v, ok := r.Value()
	if !ok {
		return Unclassified
	}
	return s.Classify(v)
}

// Color returns the palette entry for bucket, or noData when bucket does not
// index the palette.
func (s *Scale) Color(bucket int, noData string) string {
	if bucket < 0 || bucket >= len(s.Palette) {
		return noData
	}
	return s.Palette[bucket]
}

// InvertExtent returns the value range bucket represents. The top bucket is
// clamped to the scale maximum.
func (s *Scale) InvertExtent(bucket int) (low, high float64, ok bool) {
	n := len(s.Palette)
	if bucket < 0 || bucket >= n {
		return 0, 0, false
	}
	low = s.Min
	if bucket > 0 {
		low = s.Boundaries[bucket-1]
	}
	high = s.Max
	if bucket < n-1 {
		high = s.Boundaries[bucket]
	}
	return low, high, true
}

// LegendBuckets inverts the scale into one range per palette colour, in
// ascending order. The top bucket's High is clamped to top, normally the
// observed dataset maximum.
func (s *Scale) LegendBuckets(top float64) []LegendBucket {
	n := len(s.Palette)
	out := make([]LegendBucket, n)
	for i := range n {
		low, high, _ := s.InvertExtent(i)
		if i == n-1 {
			high = top
		}
		out[i] = LegendBucket{Index: i, Low: low, High: high, Color: s.Palette[i]}
	}
	return out
}
