package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/store"
)

// layerInfo describes one entry of the layer catalog.
type layerInfo struct {
	Name        string `json:"name"`
	Geometry    string `json:"geometry"`
	Description string `json:"description"`
}

var layerCatalog = []layerInfo{
	{Name: model.LayerDistricts, Geometry: "multipolygon", Description: "administrative districts with population"},
	{Name: model.LayerCells, Geometry: "polygon", Description: "hex grid cells"},
	{Name: model.LayerTransitStops, Geometry: "point", Description: "classified transit stops"},
	{Name: model.LayerAmenities, Geometry: "point", Description: "classified amenities"},
	{Name: model.LayerLandUse, Geometry: "multipolygon", Description: "categorized land-use areas"},
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"layers":           layerCatalog,
		"store_configured": s.layers != nil,
	})
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	if s.layers == nil {
		writeError(w, http.StatusServiceUnavailable, "spatial store not configured")
		return
	}

	name := chi.URLParam(r, "name")
	city := r.URL.Query().Get("city")
	if city == "" {
		city = s.city
	}

	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch name {
	case model.LayerDistricts:
		fc, err = s.districtCollection(r.Context(), city)
	case model.LayerCells:
		fc, err = s.cellCollection(r.Context(), city)
	case model.LayerTransitStops, model.LayerAmenities:
		fc, err = s.featureCollection(r.Context(), city, name)
	case model.LayerLandUse:
		fc, err = s.landUseCollection(r.Context(), city)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown layer %q", name))
		return
	}
	if err != nil {
		s.storeError(w, err, "layer "+name)
		return
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		s.storeError(w, err, "layer "+name)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func (s *Server) districtCollection(ctx context.Context, city string) (*geojson.FeatureCollection, error) {
	districts, err := s.layers.Districts(ctx, city)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, d := range districts {
		f := geojson.NewFeature(d.Geometry)
		f.Properties["name"] = d.Name
		f.Properties["population"] = d.Population
		f.Properties["area_km2"] = d.AreaKm2
		fc.Append(f)
	}
	return fc, nil
}

func (s *Server) cellCollection(ctx context.Context, city string) (*geojson.FeatureCollection, error) {
	cells, err := s.layers.Cells(ctx, city)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	badBoundary := 0
	for _, c := range cells {
		poly, err := hexgrid.CellToPolygon(c.ID)
		if err != nil {
			badBoundary++
			continue
		}
		f := geojson.NewFeature(poly)
		f.Properties["cell_id"] = c.ID
		f.Properties["resolution"] = c.Resolution
		fc.Append(f)
	}
	if badBoundary > 0 {
		zap.L().Warn("api: cells without boundary",
			zap.String("city", city), zap.Int("count", badBoundary))
	}
	return fc, nil
}

func (s *Server) featureCollection(ctx context.Context, city, layer string) (*geojson.FeatureCollection, error) {
	features, err := s.layers.Features(ctx, city, layer)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, ft := range features {
		f := geojson.NewFeature(orb.Point{ft.Lng, ft.Lat})
		f.Properties["id"] = ft.ID
		f.Properties["category"] = ft.Category
		if ft.Name != "" {
			f.Properties["name"] = ft.Name
		}
		fc.Append(f)
	}
	return fc, nil
}

func (s *Server) landUseCollection(ctx context.Context, city string) (*geojson.FeatureCollection, error) {
	areas, err := s.layers.LandUse(ctx, city)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, a := range areas {
		f := geojson.NewFeature(a.Geometry)
		f.Properties["id"] = a.ID
		f.Properties["category"] = a.Category
		f.Properties["area_km2"] = a.AreaKm2
		fc.Append(f)
	}
	return fc, nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := runFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.registry.ListRuns(r.Context(), filter)
	if err != nil {
		s.storeError(w, err, "list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// runFilterFromQuery builds a RunFilter from ?status=&city=&category=&limit=&offset=.
func runFilterFromQuery(r *http.Request) (store.RunFilter, error) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:        model.RunStatus(q.Get("status")),
		City:          q.Get("city"),
		ErrorCategory: model.ErrorCategory(q.Get("category")),
		Limit:         50,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("invalid limit %q", v)
		}
		if n > 500 {
			n = 500
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid offset %q", v)
		}
		filter.Offset = n
	}
	return filter, nil
}

// runDetail is a run with its phase records attached.
type runDetail struct {
	model.Run
	Phases []model.RunPhase `json:"phases"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := s.registry.GetRun(r.Context(), runID)
	if err != nil {
		s.storeError(w, err, "run "+runID)
		return
	}
	phases, err := s.registry.ListPhases(r.Context(), runID)
	if err != nil {
		s.storeError(w, err, "phases for "+runID)
		return
	}
	if phases == nil {
		phases = []model.RunPhase{}
	}
	writeJSON(w, http.StatusOK, runDetail{Run: *run, Phases: phases})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	scores, err := s.registry.LatestScores(r.Context(), city)
	if err != nil {
		s.storeError(w, err, "scores for "+city)
		return
	}
	if len(scores) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no scores recorded for %q", city))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"city": city, "scores": scores})
}

// storeError maps a store error to a response: missing data answers 404,
// everything else logs and answers 500.
func (s *Server) storeError(w http.ResponseWriter, err error, what string) {
	if errkind.Is(err, errkind.NoData) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	zap.L().Error("api: "+what, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
