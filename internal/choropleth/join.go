package choropleth

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DuplicateKey records a statistic row dropped because an earlier row
// already used its key.
type DuplicateKey struct {
	RegionKey string  `json:"region_key"`
	KeptValue float64 `json:"kept_value"`
	Dropped   float64 `json:"dropped_value"`
	Row       int     `json:"row"`
}

// JoinResult is the output of Join.
type JoinResult struct {
	Records    []JoinedRecord
	Duplicates []DuplicateKey
	Unmatched  []string // geometry keys with no statistic
	Orphans    []string // statistic keys with no geometry
}

// Err reports duplicate statistic keys as an error wrapping ErrDuplicateKey.
func (r *JoinResult) Err() error {
	if r == nil || len(r.Duplicates) == 0 {
		return nil
	}
	return eris.Wrapf(ErrDuplicateKey, "%d duplicate keys, first %q",
		len(r.Duplicates), r.Duplicates[0].RegionKey)
}

// Matched returns the number of records that found a statistic.
func (r *JoinResult) Matched() int {
	if r == nil {
		return 0
	}
	return len(r.Records) - len(r.Unmatched)
}

// Join attaches each geometry to the statistic sharing its region key.
// Every geometry yields exactly one record, in input order. The first
// statistic for a key wins; later ones are reported in Duplicates.
// Empty stats or geometries produce an empty result.
func Join(stats []StatRecord, geoms []GeometryRecord) *JoinResult {
	res := &JoinResult{}
	if len(stats) == 0 || len(geoms) == 0 {
		return res
	}

	log := zap.L().With(zap.String("component", "choropleth.join"))

	index := indexStats(stats, res)
	for _, d := range res.Duplicates {
		log.Warn("duplicate region key, keeping first",
			zap.String("region_key", d.RegionKey),
			zap.Float64("kept", d.KeptValue),
			zap.Float64("dropped", d.Dropped),
			zap.Int("row", d.Row),
		)
	}

	seen := make(map[string]bool, len(geoms))
	res.Records = make([]JoinedRecord, 0, len(geoms))
	for _, g := range geoms {
		rec := JoinedRecord{RegionKey: g.RegionKey, Geometry: g.Geometry}
		if i, ok := index[g.RegionKey]; ok {
			s := stats[i]
			rec.Stat = &s
			seen[g.RegionKey] = true
		} else {
			res.Unmatched = append(res.Unmatched, g.RegionKey)
		}
		res.Records = append(res.Records, rec)
	}

	for i, s := range stats {
		if index[s.RegionKey] == i && !seen[s.RegionKey] {
			res.Orphans = append(res.Orphans, s.RegionKey)
		}
	}

	if len(res.Unmatched) > 0 {
		log.Info("geometries without statistics",
			zap.Int("count", len(res.Unmatched)),
			zap.Strings("sample", sample(res.Unmatched, 5)),
		)
	}
	return res
}

// indexStats maps each key to the row of its first occurrence, recording
// later occurrences on res.
func indexStats(stats []StatRecord, res *JoinResult) map[string]int {
	index := make(map[string]int, len(stats))
	for i, s := range stats {
		if first, ok := index[s.RegionKey]; ok {
			res.Duplicates = append(res.Duplicates, DuplicateKey{
				RegionKey: s.RegionKey,
				KeptValue: stats[first].Value,
				Dropped:   s.Value,
				Row:       i,
			})
			continue
		}
		index[s.RegionKey] = i
	}
	return index
}

// UniqueValues returns the value of the first statistic for each key, in
// input order.
func UniqueValues(stats []StatRecord) []float64 {
	seen := make(map[string]bool, len(stats))
	values := make([]float64, 0, len(stats))
	for _, s := range stats {
		if seen[s.RegionKey] {
			continue
		}
		seen[s.RegionKey] = true
		values = append(values, s.Value)
	}
	return values
}

func sample(keys []string, n int) []string {
	if len(keys) <= n {
		return keys
	}
	return keys[:n]
}
