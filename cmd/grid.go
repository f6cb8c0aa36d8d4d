package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/export"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/ingest"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/pipeline"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Rasterize the district boundary onto the hex grid",
	Long: `Covers the merged district boundary with hex cells at the configured
resolution and writes the boundary and cell layers into the output
directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if res, _ := cmd.Flags().GetInt("resolution"); res > 0 {
			cfg.Grid.Resolution = res
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		path, _ := cmd.Flags().GetString("districts")
		districts, stats, err := ingest.LoadDistricts(path)
		if err != nil {
			return eris.Wrap(err, "grid: load districts")
		}

		cells, err := env.Pipeline.Rasterize(districts)
		if err != nil {
			return eris.Wrap(err, "grid: rasterize")
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = cfg.Output.Dir
		}
		w := export.NewWriter(out, "")
		if err := w.Boundary(cfg.City.Name, pipeline.Boundary(districts)); err != nil {
			return err
		}
		if err := w.Cells(cells, nil); err != nil {
			return err
		}

		zap.L().Info("grid written",
			zap.Int("districts", len(districts)),
			zap.Int("skipped", stats.SkippedTotal()),
			zap.Int("cells", len(cells)),
			zap.Int("resolution", cfg.Grid.Resolution),
			zap.String("dir", w.Dir()))
		return nil
	},
}

func init() {
	f := gridCmd.Flags()
	f.String("districts", "", "district polygons (GeoJSON or shapefile)")
	f.Int("resolution", 0, "grid resolution override (default from config)")
	f.String("output", "", "output directory (default from config)")
	_ = gridCmd.MarkFlagRequired("districts")
	rootCmd.AddCommand(gridCmd)
}
