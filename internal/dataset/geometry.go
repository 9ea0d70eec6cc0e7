package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/fetcher"
)

// LoadGeometries reads the geometry source described by src.
func (l *Loader) LoadGeometries(ctx context.Context, src config.GeometryConfig) ([]choropleth.GeometryRecord, error) {
	var (
		records []choropleth.GeometryRecord
		err     error
	)
	switch strings.ToLower(src.Format) {
	case "geojson":
		records, err = l.geometryGeoJSON(ctx, src)
	case "shapefile":
		records, err = l.geometryShapefile(ctx, src)
	case "postgis":
		records, err = l.geometryPostGIS(ctx, src)
	default:
		return nil, eris.Errorf("dataset: unsupported geometry format %q", src.Format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("geometries loaded",
		zap.String("component", "dataset.geometry"),
		zap.String("format", src.Format),
		zap.Int("records", len(records)),
	)
	return records, nil
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

func (l *Loader) geometryGeoJSON(ctx context.Context, src config.GeometryConfig) ([]choropleth.GeometryRecord, error) {
	body, err := l.Fetcher.Download(ctx, src.URL)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: download geometry")
	}
	defer body.Close() //nolint:errcheck

	return ReadGeoJSON(body, src.KeyField, src.KeyWidth)
}

// ReadGeoJSON decodes a FeatureCollection. The region key is the keyField
// property when present, otherwise the feature id. Features without a key
// or geometry are skipped.
func ReadGeoJSON(r io.Reader, keyField string, width int) ([]choropleth.GeometryRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var fc featureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "dataset: decode geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("dataset: expected FeatureCollection, got %q", fc.Type)
	}

	out := make([]choropleth.GeometryRecord, 0, len(fc.Features))
	var skipped int
	for i, f := range fc.Features {
		raw := f.ID
		if keyField != "" {
			if v := field(f.Properties, keyField); v != nil {
				raw = v
			}
		}
		key, err := NormalizeKey(raw, width)
		if err != nil {
			skipped++
			zap.L().Debug("dataset: skipping feature without key", zap.Int("feature", i), zap.Error(err))
			continue
		}

		if len(f.Geometry) == 0 || bytes.Equal(bytes.TrimSpace(f.Geometry), []byte("null")) {
			skipped++
			zap.L().Debug("dataset: skipping feature without geometry", zap.String("region_key", key))
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			return nil, eris.Wrapf(err, "dataset: decode geometry for %s", key)
		}
		out = append(out, choropleth.GeometryRecord{RegionKey: key, Geometry: g})
	}

	if skipped > 0 {
		zap.L().Warn("dataset: skipped geojson features", zap.Int("skipped", skipped))
	}
	return out, nil
}

func (l *Loader) geometryShapefile(ctx context.Context, src config.GeometryConfig) ([]choropleth.GeometryRecord, error) {
	work, cleanup, err := l.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	shpPath, err := l.shapefilePath(ctx, src.URL, work)
	if err != nil {
		return nil, err
	}
	return ReadShapefile(shpPath, src.KeyField, src.KeyWidth)
}

// shapefilePath resolves a .zip bundle or a .shp file to a local .shp path,
// downloading and extracting into work. A remote .shp is fetched together
// with its .dbf.
func (l *Loader) shapefilePath(ctx context.Context, rawURL, work string) (string, error) {
	switch strings.ToLower(path.Ext(rawURL)) {
	case ".zip":
		zipPath, err := l.localCopy(ctx, rawURL, work)
		if err != nil {
			return "", err
		}
		dir := filepath.Join(work, "bundle")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", eris.Wrap(err, "dataset: create extract dir")
		}
		files, err := fetcher.ExtractZIP(zipPath, dir)
		if err != nil {
			return "", eris.Wrap(err, "dataset: extract shapefile bundle")
		}
		return fetcher.FindByExt(files, ".shp")
	case ".shp":
		if isLocal(rawURL) {
			return fetcher.LocalPath(rawURL)
		}
		base := strings.TrimSuffix(rawURL, path.Ext(rawURL))
		if _, err := l.localCopy(ctx, base+".dbf", work); err != nil {
			return "", err
		}
		return l.localCopy(ctx, rawURL, work)
	default:
		return "", eris.Errorf("dataset: shapefile source must be .shp or .zip: %s", rawURL)
	}
}

// ReadShapefile reads polygon shapes keyed by the keyField attribute.
func ReadShapefile(shpPath, keyField string, width int) ([]choropleth.GeometryRecord, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	keyIdx := -1
	var names []string
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		names = append(names, name)
		if strings.EqualFold(name, keyField) {
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		return nil, eris.Errorf("dataset: shapefile has no %q field (fields: %s)", keyField, strings.Join(names, ", "))
	}

	var (
		out     []choropleth.GeometryRecord
		skipped int
	)
	for reader.Next() {
		n, shape := reader.Shape()
		key, err := NormalizeKey(strings.TrimRight(reader.Attribute(keyIdx), "\x00"), width)
		if err != nil {
			skipped++
			zap.L().Debug("dataset: skipping shape without key", zap.Int("shape", n))
			continue
		}
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			zap.L().Debug("dataset: skipping non-polygon shape", zap.String("region_key", key))
			continue
		}
		out = append(out, choropleth.GeometryRecord{RegionKey: key, Geometry: g})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: read shapefile")
	}

	if skipped > 0 {
		zap.L().Warn("dataset: skipped shapefile records", zap.Int("skipped", skipped))
	}
	return out, nil
}

func (l *Loader) geometryPostGIS(ctx context.Context, src config.GeometryConfig) ([]choropleth.GeometryRecord, error) {
	if l.Pool == nil {
		return nil, eris.New("dataset: postgis geometry source needs a database pool")
	}

	col := pgx.Identifier{src.GeomColumn}.Sanitize()
	query := fmt.Sprintf(`SELECT region_key, ST_AsBinary(%s) FROM %s WHERE %s IS NOT NULL ORDER BY region_key`,
		col, pgx.Identifier{l.Schema, src.Table}.Sanitize(), col)

	rows, err := l.Pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: query region geometries")
	}
	defer rows.Close()

	var out []choropleth.GeometryRecord
	for rows.Next() {
		var (
			raw  string
			data []byte
		)
		if err := rows.Scan(&raw, &data); err != nil {
			return nil, eris.Wrap(err, "dataset: scan region geometry")
		}
		key, err := NormalizeKey(raw, src.KeyWidth)
		if err != nil {
			return nil, err
		}
		g, err := wkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode wkb for %s", key)
		}
		out = append(out, choropleth.GeometryRecord{RegionKey: key, Geometry: g})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: iterate region geometries")
	}
	return out, nil
}
