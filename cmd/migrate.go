package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations",
	Long:  "Creates the run-registry tables in the SQLite file and, with the postgres driver configured, the spatial tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sp, err := initSpatial(ctx)
		if err != nil {
			return err
		}
		if sp != nil {
			defer sp.Close() //nolint:errcheck
		}

		zap.L().Info("migrations applied",
			zap.String("registry", cfg.Store.RegistryDSN),
			zap.Bool("spatial", sp != nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
