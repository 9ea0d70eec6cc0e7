package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table names inside the configured schema.
const (
	StatsTable    = "region_stats"
	GeometryTable = "region_geometries"
)

// StatsColumns is the column order used when copying statistics.
var StatsColumns = []string{"region_key", "value", "display_name", "group_name"}

// GeometryColumns is the column order used when copying geometries. The geom
// value is EWKB with SRID 4326.
var GeometryColumns = []string{"region_key", "geom"}

// schemaStatements builds the DDL for schema. Geometry rows need PostGIS.
func schemaStatements(schema string) []string {
	s := pgx.Identifier{schema}.Sanitize()
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			region_key   TEXT PRIMARY KEY,
			value        DOUBLE PRECISION NOT NULL,
			display_name TEXT,
			group_name   TEXT
		)`, s, StatsTable),
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			region_key TEXT PRIMARY KEY,
			geom       geometry(MultiPolygon, 4326)
		)`, s, GeometryTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_geom ON %s.%s USING gist (geom)`, GeometryTable, s, GeometryTable),
	}
}

// EnsureSchema creates the statistic and geometry tables if missing.
func EnsureSchema(ctx context.Context, pool Pool, schema string) error {
	for _, stmt := range schemaStatements(schema) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "db: ensure schema %s", schema)
		}
	}
	return nil
}
