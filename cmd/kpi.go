package main

import (
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/export"
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Compute the per-cell KPI layers",
	Long: `Recomputes the chain up to the KPI stage in memory: ingest, population
interpolation, then the accessibility and density layers per hex cell.
Writes the cell layers with one column per KPI into the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src, ir, layers, err := computeLayers(ctx, env.Pipeline, inputsFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "kpi")
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = cfg.Output.Dir
		}
		w := export.NewWriter(out, "")
		if err := w.Cells(ir.Cells, export.CellColumns(layers)); err != nil {
			return err
		}

		names := make([]string, 0, len(layers))
		for name := range layers {
			names = append(names, name)
		}
		sort.Strings(names)

		zap.L().Info("kpi layers written",
			zap.Int("districts", len(src.Districts)),
			zap.Int("cells", len(ir.Cells)),
			zap.Strings("layers", names),
			zap.String("dir", w.Dir()))
		return nil
	},
}

func init() {
	addInputFlags(kpiCmd)
	markInputsRequired(kpiCmd)
	kpiCmd.Flags().String("output", "", "output directory (default from config)")
	rootCmd.AddCommand(kpiCmd)
}
