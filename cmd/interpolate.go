package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/export"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/ingest"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/interp"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

var interpolateCmd = &cobra.Command{
	Use:   "interpolate",
	Short: "Distribute district populations onto the hex grid",
	Long: `Joins the population table onto the district polygons and distributes
each district's population over its hex cells by areal weight. Writes the
cell population layer into the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dPath, _ := cmd.Flags().GetString("districts")
		pPath, _ := cmd.Flags().GetString("population")

		districts, _, err := ingest.LoadDistricts(dPath)
		if err != nil {
			return eris.Wrap(err, "interpolate: load districts")
		}
		population, _, err := ingest.LoadPopulation(pPath, env.Pipeline.PopulationOptions())
		if err != nil {
			return eris.Wrap(err, "interpolate: load population")
		}

		joined, mm := interp.JoinPopulation(districts, population)
		ir, err := env.Pipeline.Interpolate(ctx, joined)
		if err != nil {
			return eris.Wrap(err, "interpolate")
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = cfg.Output.Dir
		}
		w := export.NewWriter(out, "")
		popLayer := map[string][]model.CellValue{kpi.KPIPopulation: ir.Values}
		if err := w.Cells(ir.Cells, export.CellColumns(popLayer)); err != nil {
			return err
		}

		zap.L().Info("population interpolated",
			zap.Int("cells", len(ir.Cells)),
			zap.Int("weights", len(ir.Weights)),
			zap.Float64("total_population", ir.TotalPopulation),
			zap.Int("districts_without_population", len(mm.MissingPopulation)),
			zap.Int("unmatched_table_rows", len(mm.UnknownDistricts)),
			zap.String("dir", w.Dir()))
		return nil
	},
}

func init() {
	f := interpolateCmd.Flags()
	f.String("districts", "", "district polygons (GeoJSON or shapefile)")
	f.String("population", "", "population table (CSV or XLSX)")
	f.String("output", "", "output directory (default from config)")
	_ = interpolateCmd.MarkFlagRequired("districts")
	_ = interpolateCmd.MarkFlagRequired("population")
	rootCmd.AddCommand(interpolateCmd)
}
