package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/dataset"
	"github.com/sells-group/choropleth/internal/db"
	"github.com/sells-group/choropleth/internal/render"
)

// sourceFlags are the per-command overrides for the configured sources.
type sourceFlags struct {
	statsURL       string
	statsFormat    string
	geometryURL    string
	geometryFormat string
}

func (f sourceFlags) apply(c *config.Config) {
	if f.statsURL != "" {
		c.Stats.URL = f.statsURL
	}
	if f.statsFormat != "" {
		c.Stats.Format = f.statsFormat
	}
	if f.geometryURL != "" {
		c.Geometry.URL = f.geometryURL
	}
	if f.geometryFormat != "" {
		c.Geometry.Format = f.geometryFormat
	}
}

// needsStore reports whether any configured source reads from Postgres.
func needsStore(c *config.Config) bool {
	return c.Stats.Format == "postgres" || c.Geometry.Format == "postgis" || c.Render.Borders.Format == "postgis"
}

// openStore connects to Postgres when a source needs it. The returned
// pool is nil otherwise; the close func is always safe to call.
func openStore(ctx context.Context, c *config.Config) (db.Pool, func(), error) {
	if !needsStore(c) {
		return nil, func() {}, nil
	}
	pool, err := db.Connect(ctx, c.Store.DatabaseURL)
	if err != nil {
		return nil, func() {}, err
	}
	return pool, pool.Close, nil
}

// buildMap loads both sources and classifies the joined result.
func buildMap(ctx context.Context, c *config.Config, pool db.Pool) (*choropleth.Map, error) {
	loader := dataset.NewLoader(c, pool)
	stats, geoms, err := loader.LoadAll(ctx, c.Stats, c.Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "load datasets")
	}

	m, err := choropleth.Build(stats, geoms, c.Scale.Options())
	if err != nil {
		return nil, eris.Wrap(err, "build map")
	}

	zap.L().Info("map built",
		zap.String("component", "build"),
		zap.Int("regions", len(m.Regions)),
		zap.Int("matched", m.Join.Matched()),
		zap.Int("unmatched", len(m.Join.Unmatched)),
		zap.Int("orphans", len(m.Join.Orphans)),
		zap.Int("duplicates", len(m.Join.Duplicates)),
	)
	return m, nil
}

// loadBorders reads the optional outline layer drawn under SVG regions.
func loadBorders(ctx context.Context, c *config.Config, pool db.Pool) ([]choropleth.GeometryRecord, error) {
	if !c.Render.HasBorders() {
		return nil, nil
	}
	borders, err := dataset.NewLoader(c, pool).LoadGeometries(ctx, c.Render.Borders)
	if err != nil {
		return nil, eris.Wrap(err, "load borders")
	}
	return borders, nil
}

// svgOptions is the render config plus its border layer.
func svgOptions(ctx context.Context, c *config.Config, pool db.Pool) (render.SVGOptions, error) {
	opts := render.SVGOptionsFrom(c.Render)
	borders, err := loadBorders(ctx, c, pool)
	if err != nil {
		return opts, err
	}
	opts.Borders = borders
	return opts, nil
}

// loadMap is buildMap with the store opened and closed around it.
func loadMap(ctx context.Context, c *config.Config) (*choropleth.Map, error) {
	pool, closePool, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	defer closePool()
	return buildMap(ctx, c, pool)
}
