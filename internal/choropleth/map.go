package choropleth

import (
	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Options configures Build.
type Options struct {
	BucketCount int
	Palette     []string
	NoDataColor string
	// StrictKeys turns duplicate statistic keys into a Build error.
	StrictKeys bool
}

// DefaultOptions returns nine BuGn buckets with a grey no-data fill.
func DefaultOptions() Options {
	return Options{
		BucketCount: len(BuGn9),
		Palette:     BuGn9,
		NoDataColor: DefaultNoDataColor,
	}
}

// Region is the classified record handed to renderers.
type Region struct {
	RegionKey string      `json:"region_key"`
	Value     float64     `json:"value"`
	HasValue  bool        `json:"has_value"`
	Bucket    int         `json:"bucket"`
	Low       float64     `json:"low"`
	High      float64     `json:"high"`
	Color     string      `json:"color"`
	Stat      *StatRecord `json:"stat,omitempty"`
	Geometry  geom.T      `json:"-"`
}

// Summary describes the statistic distribution the scale was built from.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
}

// Map is a joined and classified dataset. It is immutable once built.
type Map struct {
	Regions []Region
	Legend  []LegendBucket
	Scale   *Scale
	Join    *JoinResult
	Summary Summary

	noData string
	index  map[string]int
}

// Build joins rows to geoms, builds the threshold scale over every distinct
// statistic value and classifies each region.
func Build(rows []StatRecord, geoms []GeometryRecord, opts Options) (*Map, error) {
	if opts.NoDataColor == "" {
		opts.NoDataColor = DefaultNoDataColor
	}

	join := Join(rows, geoms)
	if opts.StrictKeys {
		if err := join.Err(); err != nil {
			return nil, err
		}
	}

	m := &Map{Join: join, noData: opts.NoDataColor}

	values := UniqueValues(rows)
	if len(values) > 0 {
		scale, err := BuildScale(values, opts.BucketCount, opts.Palette)
		if err != nil {
			return nil, err
		}
		m.Scale = scale
		m.Legend = scale.LegendBuckets(scale.Max)
		summary, err := Summarize(values)
		if err != nil {
			return nil, err
		}
		m.Summary = summary
	}

	records := join.Records
	if len(rows) == 0 {
		// No statistics: every geometry still renders, unclassified.
		records = make([]JoinedRecord, len(geoms))
		for i, g := range geoms {
			records[i] = JoinedRecord{RegionKey: g.RegionKey, Geometry: g.Geometry}
		}
	}

	m.Regions = make([]Region, len(records))
	m.index = make(map[string]int, len(records))
	for i, r := range records {
		m.Regions[i] = m.classify(r)
		if _, dup := m.index[r.RegionKey]; !dup {
			m.index[r.RegionKey] = i
		}
	}

	zap.L().Debug("choropleth: map built",
		zap.Int("regions", len(m.Regions)),
		zap.Int("matched", join.Matched()),
		zap.Int("unmatched", len(join.Unmatched)),
		zap.Int("duplicates", len(join.Duplicates)),
	)
	return m, nil
}

func (m *Map) classify(r JoinedRecord) Region {
	reg := Region{
		RegionKey: r.RegionKey,
		Bucket:    Unclassified,
		Color:     m.noData,
		Stat:      r.Stat,
		Geometry:  r.Geometry,
	}
	v, ok := r.Value()
	if !ok || m.Scale == nil {
		return reg
	}
	reg.Value, reg.HasValue = v, true
	reg.Bucket = m.Scale.Classify(v)
	reg.Color = m.Scale.Color(reg.Bucket, m.noData)
	reg.Low, reg.High, _ = m.Scale.InvertExtent(reg.Bucket)
	return reg
}

// Lookup returns the region with the given key.
func (m *Map) Lookup(key string) (Region, bool) {
	i, ok := m.index[key]
	if !ok {
		return Region{}, false
	}
	return m.Regions[i], true
}

// NoDataColor is the fill used for unclassified regions.
func (m *Map) NoDataColor() string {
	return m.noData
}

// Ticks returns the legend axis tick values, which are the scale boundaries.
func (m *Map) Ticks() []float64 {
	if m.Scale == nil {
		return nil
	}
	return append([]float64(nil), m.Scale.Boundaries...)
}

// Summarize computes count, extent, mean and median of values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, nil
	}
	s := Summary{Count: len(values)}
	var err error
	if s.Min, err = stats.Min(values); err != nil {
		return Summary{}, eris.Wrap(err, "choropleth: summary min")
	}
	if s.Max, err = stats.Max(values); err != nil {
		return Summary{}, eris.Wrap(err, "choropleth: summary max")
	}
	if s.Mean, err = stats.Mean(values); err != nil {
		return Summary{}, eris.Wrap(err, "choropleth: summary mean")
	}
	if s.Median, err = stats.Median(values); err != nil {
		return Summary{}, eris.Wrap(err, "choropleth: summary median")
	}
	return s, nil
}
