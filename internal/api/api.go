// Package api serves the read-only HTTP surface: run registry queries,
// district scores and GeoJSON spatial layers, plus health and Prometheus
// scrape endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/metrics"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/store"
)

// Registry is the run-registry read surface the API exposes. Satisfied by
// the SQLite store.
type Registry interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)
	LatestScores(ctx context.Context, city string) ([]model.ScoreRow, error)
}

// LayerSource serves the stored spatial layers. Satisfied by the Postgres
// spatial store; nil when no spatial store is configured.
type LayerSource interface {
	Districts(ctx context.Context, city string) ([]model.District, error)
	Features(ctx context.Context, city, layer string) ([]model.PointFeature, error)
	LandUse(ctx context.Context, city string) ([]model.LandUseArea, error)
	Cells(ctx context.Context, city string) ([]model.GridCell, error)
}

// Options configures the API server.
type Options struct {
	// City is the default city for layer queries without a ?city= param.
	City           string
	RateLimitQPS   float64
	RateLimitBurst int
}

// Server routes API requests to the run registry and the spatial store.
type Server struct {
	registry Registry
	layers   LayerSource
	city     string
	limiter  *rate.Limiter
	router   chi.Router
}

// NewServer builds the router with CORS, rate limiting and request metrics
// installed. Pass a nil LayerSource when no spatial store is configured;
// layer routes then answer 503.
func NewServer(registry Registry, layers LayerSource, opts Options) *Server {
	qps := opts.RateLimitQPS
	if qps <= 0 {
		qps = 20
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = int(qps) * 2
	}

	s := &Server{
		registry: registry,
		layers:   layers,
		city:     opts.City,
		limiter:  rate.NewLimiter(rate.Limit(qps), burst),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// One shared token bucket across the API routes; health and scrape
	// endpoints stay exempt so probes are never rejected.
	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/layers", s.handleLayers)
		r.Get("/layers/{name}", s.handleLayer)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
		r.Get("/scores/{city}", s.handleScores)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "api: shutdown")
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "api: listen")
		}
		return nil
	}
}
