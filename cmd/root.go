package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/config"
)

var (
	cfg      *config.Config
	cityFlag string
)

var rootCmd = &cobra.Command{
	Use:   "geodata",
	Short: "Hex-grid spatial KPI pipeline",
	Long:  "Ingests municipal geodata, rasterizes districts onto a hex grid, interpolates population by areal weight, computes accessibility KPIs and ranks districts by composite score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if cityFlag != "" {
			cfg.City.Name = cityFlag
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cityFlag, "city", "", "override the configured city name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
