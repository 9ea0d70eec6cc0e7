// Package choropleth joins per-region statistics to region geometries and
// classifies each region into an ordered set of colour buckets.
package choropleth

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Unclassified is the bucket assigned to a region that has geometry but no
// statistic. It never indexes the palette.
const Unclassified = -1

// Sentinel errors. Match with eris.Is.
var (
	ErrInvalidConfiguration = eris.New("choropleth: invalid configuration")
	ErrDuplicateKey         = eris.New("choropleth: duplicate region key")
)

// StatRecord is one row of the statistic dataset.
type StatRecord struct {
	RegionKey   string  `json:"region_key" yaml:"region_key"`
	Value       float64 `json:"value" yaml:"value"`
	DisplayName string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	GroupName   string  `json:"group_name,omitempty" yaml:"group_name,omitempty"`
}

// GeometryRecord is one drawable region. Geometry is carried through the
// join untouched.
type GeometryRecord struct {
	RegionKey string
	Geometry  geom.T
}

// JoinedRecord pairs a geometry with its statistic. Stat is nil when no
// statistic shares the geometry's key.
type JoinedRecord struct {
	RegionKey string
	Stat      *StatRecord
	Geometry  geom.T
}

// Value returns the joined statistic value and whether one exists.
func (r JoinedRecord) Value() (float64, bool) {
	if r.Stat == nil {
		return 0, false
	}
	return r.Stat.Value, true
}

// LegendBucket is the [Low, High) value range one palette colour stands for.
// The last bucket's High is the dataset maximum and is inclusive.
type LegendBucket struct {
	Index int     `json:"index" yaml:"index"`
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Color string  `json:"color" yaml:"color"`
}

// BuGn9 is the nine-step blue-green sequential palette.
var BuGn9 = []string{
	"#f7fcfd", "#e5f5f9", "#ccece6", "#99d8c9", "#66c2a4",
	"#41ae76", "#238b45", "#006d2c", "#00441b",
}

// DefaultNoDataColor fills regions with no statistic.
const DefaultNoDataColor = "#d9d9d9"
