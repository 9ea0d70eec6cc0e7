package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/api"
	"github.com/sells-group/choropleth/internal/choropleth"
)

var (
	servePort    int
	serveSources sourceFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the classified map over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveSources.apply(cfg)
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		pool, closePool, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closePool()

		m, err := buildMap(ctx, cfg, pool)
		if err != nil {
			return err
		}

		svg, err := svgOptions(ctx, cfg, pool)
		if err != nil {
			return err
		}

		srv, err := api.NewServer(m, api.Options{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			SVG:            svg,
			Build: func(ctx context.Context) (*choropleth.Map, error) {
				return buildMap(ctx, cfg, pool)
			},
		})
		if err != nil {
			return err
		}

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	addSourceFlags(serveCmd, &serveSources)
	rootCmd.AddCommand(serveCmd)
}
