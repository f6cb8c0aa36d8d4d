package model

import (
	"github.com/paulmach/orb"
)

// Canonical names of the spatial layers, shared by ingestion, storage and
// the HTTP API.
const (
	LayerDistricts    = "districts"
	LayerCells        = "cells"
	LayerTransitStops = "transit_stops"
	LayerAmenities    = "amenities"
	LayerLandUse      = "landuse"
)

// District is a named administrative polygon with an associated population
// scalar. Name is the normalized join key (whitespace-collapsed, trimmed,
// NFC); RawName preserves the source spelling.
type District struct {
	Name       string            `json:"name"`
	RawName    string            `json:"raw_name,omitempty"`
	Geometry   orb.MultiPolygon  `json:"-"`
	Population float64           `json:"population"`
	AreaKm2    float64           `json:"area_km2"`
	Properties map[string]string `json:"properties,omitempty"`
}

// PointFeature is a categorized geographic point (transit stop, amenity).
// Category is assigned by the classification rule cascade; Tags holds the
// raw source attributes the rules matched against.
type PointFeature struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Category string            `json:"category"`
	Layer    string            `json:"layer"`
	Lat      float64           `json:"lat"`
	Lng      float64           `json:"lng"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// LandUseArea is a categorized land-use polygon (park, forest, residential).
type LandUseArea struct {
	ID       string           `json:"id"`
	Category string           `json:"category"`
	Geometry orb.MultiPolygon `json:"-"`
	AreaKm2  float64          `json:"area_km2"`
}

// GridCell is a hex-grid cell at a fixed resolution. The ID is the opaque
// cell key from the grid library; geometry is derived on demand and never
// authoritative.
type GridCell struct {
	ID          string  `json:"id"`
	Resolution  int     `json:"resolution"`
	CentroidLat float64 `json:"centroid_lat"`
	CentroidLng float64 `json:"centroid_lng"`
}

// WeightRecord is one (cell, district, weight) triple from areal
// interpolation. Weights for a fixed district sum to 1.0 after
// renormalization.
type WeightRecord struct {
	CellID   string  `json:"cell_id"`
	District string  `json:"district"`
	Weight   float64 `json:"weight"`
	AreaM2   float64 `json:"area_m2"`
}

// CellValue is a per-cell scalar (interpolated population or a KPI).
type CellValue struct {
	CellID string  `json:"cell_id"`
	Value  float64 `json:"value"`
}

// KPIRow is one long-format KPI observation: a per-district or per-cell
// scalar tagged with the KPI name. One row per (entity, kpi_name) pair.
type KPIRow struct {
	Entity  string  `json:"entity"`
	KPIName string  `json:"kpi_name"`
	Value   float64 `json:"value"`
}

// ScoreRow is one district's normalized scores, weighted composite and rank.
type ScoreRow struct {
	District   string             `json:"district"`
	Raw        map[string]float64 `json:"raw"`
	Normalized map[string]float64 `json:"normalized"`
	Composite  float64            `json:"composite"`
	Rank       int                `json:"rank"`
}
