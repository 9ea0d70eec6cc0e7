package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/dataset"
	"github.com/sells-group/choropleth/internal/db"
)

var (
	importSkipGeometry bool
	importSources      sourceFlags
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the configured statistic and geometry sources into Postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		importSources.apply(cfg)
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		return importDatasets(ctx, cfg, pool, !importSkipGeometry)
	},
}

func importDatasets(ctx context.Context, c *config.Config, pool db.Pool, withGeometry bool) error {
	if err := db.EnsureSchema(ctx, pool, c.Store.Schema); err != nil {
		return err
	}

	loader := dataset.NewLoader(c, pool)
	stats, err := loader.ImportStats(ctx, c.Stats)
	if err != nil {
		return eris.Wrap(err, "import stats")
	}

	var geoms int64
	if withGeometry {
		geoms, err = loader.ImportGeometries(ctx, c.Geometry)
		if err != nil {
			return eris.Wrap(err, "import geometries")
		}
	}

	zap.L().Info("import complete",
		zap.Int64("stats", stats),
		zap.Int64("geometries", geoms),
		zap.String("schema", c.Store.Schema),
	)
	return nil
}

func init() {
	importCmd.Flags().BoolVar(&importSkipGeometry, "skip-geometry", false, "import statistics only")
	addSourceFlags(importCmd, &importSources)
	rootCmd.AddCommand(importCmd)
}
