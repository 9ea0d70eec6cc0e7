package render

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// FeatureCollection builds one feature per region with geometry. Properties
// carry the fill colour, bucket, value (null when absent), the statistic's
// name and group, and the tooltip text.
func FeatureCollection(m *choropleth.Map) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(m.Regions))}
	for _, r := range m.Regions {
		if r.Geometry == nil {
			continue
		}
		props := map[string]any{
			"region_key": r.RegionKey,
			"fill":       r.Color,
			"bucket":     r.Bucket,
			"value":      nil,
			"tooltip":    choropleth.Tooltip(r),
		}
		if r.HasValue {
			props["value"] = r.Value
			props["low"] = r.Low
			props["high"] = r.High
		}
		if r.Stat != nil {
			props["name"] = r.Stat.DisplayName
			props["group"] = r.Stat.GroupName
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.RegionKey,
			Geometry:   r.Geometry,
			Properties: props,
		})
	}
	return fc
}

// GeoJSON encodes the map as a GeoJSON FeatureCollection.
func GeoJSON(m *choropleth.Map) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(m))
	if err != nil {
		return nil, eris.Wrap(err, "render: encode geojson")
	}
	return data, nil
}
