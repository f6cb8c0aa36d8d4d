package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline as one tracked run",
	Long: `Executes ingest, grid, interpolate, kpi, score and export as a single
tracked run. Each stage is recorded as a phase in the run registry; the
first stage error marks the run failed with its error category and aborts
the rest. The completed run record is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Run(ctx, inputsFromFlags(cmd))
		if err != nil {
			if run != nil {
				zap.L().Error("run failed",
					zap.String("run_id", run.ID),
					zap.String("status", string(run.Status)))
			}
			return eris.Wrap(err, "pipeline run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	addInputFlags(runCmd)
	markInputsRequired(runCmd)
	rootCmd.AddCommand(runCmd)
}
