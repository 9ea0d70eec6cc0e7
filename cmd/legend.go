package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/render"
)

var (
	legendFormat  string
	legendSources sourceFlags
)

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print the colour legend for the configured datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		legendSources.apply(cfg)
		if err := cfg.Validate("render"); err != nil {
			return err
		}
		return printLegend(cmd.Context(), cfg, cmd.OutOrStdout(), legendFormat)
	},
}

func printLegend(ctx context.Context, c *config.Config, out io.Writer, format string) error {
	m, err := loadMap(ctx, c)
	if err != nil {
		return err
	}
	return render.WriteLegend(out, render.Legend(m), format)
}

func init() {
	legendCmd.Flags().StringVar(&legendFormat, "format", "table", "output format: table, json, yaml")
	addSourceFlags(legendCmd, &legendSources)
	rootCmd.AddCommand(legendCmd)
}
