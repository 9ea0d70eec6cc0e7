package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	statFormats     = map[string]bool{"json": true, "csv": true, "xlsx": true, "sqlite": true, "postgres": true}
	geometryFormats = map[string]bool{"geojson": true, "shapefile": true, "postgis": true}
)

// Validate checks the fields a command mode depends on. Modes: render,
// serve, import, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "render", "serve":
		problems = append(problems, c.validateSources()...)
		problems = append(problems, c.validateScale()...)
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if mode == "render" && (c.Render.Width <= 0 || c.Render.Height <= 0) {
			problems = append(problems, "render.width and render.height must be > 0")
		}
		if c.Render.HasBorders() && !geometryFormats[c.Render.Borders.Format] {
			problems = append(problems, "render.borders.format must be one of geojson, shapefile, postgis")
		}
		if c.Render.Borders.Format == "postgis" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgis borders")
		}
	case "import":
		problems = append(problems, c.validateSources()...)
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateSources() []string {
	var problems []string
	if !statFormats[c.Stats.Format] {
		problems = append(problems, "stats.format must be one of json, csv, xlsx, sqlite, postgres")
	}
	if c.Stats.Format != "postgres" && c.Stats.URL == "" {
		problems = append(problems, "stats.url is required")
	}
	if !geometryFormats[c.Geometry.Format] {
		problems = append(problems, "geometry.format must be one of geojson, shapefile, postgis")
	}
	if c.Geometry.Format != "postgis" && c.Geometry.URL == "" {
		problems = append(problems, "geometry.url is required")
	}
	if (c.Stats.Format == "postgres" || c.Geometry.Format == "postgis") && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres sources")
	}
	return problems
}

func (c *Config) validateScale() []string {
	var problems []string
	if c.Scale.BucketCount < 1 {
		problems = append(problems, "scale.bucket_count must be >= 1")
	}
	if len(c.Scale.Palette) != c.Scale.BucketCount {
		problems = append(problems, "scale.palette must have bucket_count colors")
	}
	return problems
}
