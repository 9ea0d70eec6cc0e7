package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres schema and tables for imported datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool, cfg.Store.Schema); err != nil {
			return err
		}
		zap.L().Info("migrations complete", zap.String("schema", cfg.Store.Schema))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
