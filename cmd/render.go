package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/render"
)

var (
	renderOut     string
	renderSources sourceFlags
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the classified map to an SVG or GeoJSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		renderSources.apply(cfg)
		if err := cfg.Validate("render"); err != nil {
			return err
		}
		return renderToFile(cmd.Context(), cfg, renderOut)
	},
}

// outputFormat picks the encoding from the file extension.
func outputFormat(out string) (string, error) {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".svg":
		return "svg", nil
	case ".geojson", ".json":
		return "geojson", nil
	default:
		return "", eris.Errorf("unsupported output %q (want .svg, .geojson or .json)", out)
	}
}

func renderToFile(ctx context.Context, c *config.Config, out string) error {
	format, err := outputFormat(out)
	if err != nil {
		return err
	}

	pool, closePool, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closePool()

	m, err := buildMap(ctx, c, pool)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "svg":
		opts, err := svgOptions(ctx, c, pool)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := render.SVG(&buf, m, opts); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		if data, err = render.GeoJSON(m); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create output dir %s", dir)
		}
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", out)
	}

	zap.L().Info("map rendered",
		zap.String("out", out),
		zap.String("format", format),
		zap.Int("regions", len(m.Regions)),
	)
	return nil
}

func addSourceFlags(cmd *cobra.Command, f *sourceFlags) {
	cmd.Flags().StringVar(&f.statsURL, "stats", "", "statistic dataset URL or path (default from config)")
	cmd.Flags().StringVar(&f.statsFormat, "stats-format", "", "statistic format: json, csv, xlsx, sqlite, postgres")
	cmd.Flags().StringVar(&f.geometryURL, "geometry", "", "geometry dataset URL or path (default from config)")
	cmd.Flags().StringVar(&f.geometryFormat, "geometry-format", "", "geometry format: geojson, shapefile, postgis")
}

func init() {
	renderCmd.Flags().StringVar(&renderOut, "out", "", "output file, .svg or .geojson (required)")
	_ = renderCmd.MarkFlagRequired("out")
	addSourceFlags(renderCmd, &renderSources)
	rootCmd.AddCommand(renderCmd)
}
