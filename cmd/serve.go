package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API over HTTP",
	Long: `Starts the HTTP API: health and Prometheus scrape endpoints plus
read-only layer, run and score routes backed by the stores. Layer routes
need the postgres driver; without it they answer 503.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sp, err := initSpatial(ctx)
		if err != nil {
			return err
		}
		var layers api.LayerSource
		if sp != nil {
			layers = sp
			defer sp.Close() //nolint:errcheck
		}

		srv := api.NewServer(st, layers, api.Options{
			City:           cfg.City.Name,
			RateLimitQPS:   cfg.Server.RateLimitQPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Bool("spatial", sp != nil))
		return srv.Serve(ctx, fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
