package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
)

// WeightSet configures the composite: category weights plus the KPI
// columns each category aggregates. A category with no group entry is
// read as a KPI column name and weighted directly.
type WeightSet struct {
	MainCategories map[string]float64  `yaml:"main_categories"`
	KPIGroups      map[string][]string `yaml:"kpi_groups,omitempty"`
}

// DefaultWeightSet returns the built-in weighting used when no file is
// configured or the configured file cannot be read.
func DefaultWeightSet() WeightSet {
	return WeightSet{
		MainCategories: map[string]float64{
			"public_transport": 0.40,
			"walkability":      0.35,
			"green_access":     0.25,
		},
		KPIGroups: map[string][]string{
			"public_transport": {kpi.KPIPTGravity, kpi.KPIStopDensity},
			"walkability":      {kpi.KPIEssentials, kpi.KPIDiversity, kpi.KPIPopulationDensity},
			"green_access":     {kpi.KPIGreenShare},
		},
	}
}

// LoadWeightSet reads a weight configuration from a YAML file. An empty
// path returns the default set; a missing or unreadable file falls back
// to the default with the error reported so the run still scores.
func LoadWeightSet(path string) (WeightSet, error) {
	if path == "" {
		return DefaultWeightSet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultWeightSet(), errkind.New(errkind.NoData, eris.Wrapf(err, "scorer: read weights %s", path))
	}

	var ws WeightSet
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return DefaultWeightSet(), errkind.New(errkind.MalformedInput, eris.Wrapf(err, "scorer: parse weights %s", path))
	}
	if err := ws.Validate(); err != nil {
		return DefaultWeightSet(), err
	}
	return ws, nil
}

// Validate rejects empty and negative weightings.
func (ws WeightSet) Validate() error {
	if len(ws.MainCategories) == 0 {
		return errkind.New(errkind.MalformedInput, eris.New("scorer: no category weights configured"))
	}
	for cat, w := range ws.MainCategories {
		if w < 0 {
			return errkind.New(errkind.MalformedInput, eris.Errorf("scorer: negative weight %.3f for %s", w, cat))
		}
	}
	return nil
}

// categoryScore resolves one weighted category for a district: the mean
// of its member columns when a group is configured, otherwise the
// category name itself read as a column. Missing columns and districts
// are skipped, not zero-filled.
func (ws WeightSet) categoryScore(cat, district string, normalized map[string]map[string]float64) (float64, bool) {
	members, grouped := ws.KPIGroups[cat]
	if !grouped {
		col, ok := normalized[cat]
		if !ok {
			return 0, false
		}
		v, ok := col[district]
		return v, ok
	}

	var sum float64
	n := 0
	for _, m := range members {
		col, ok := normalized[m]
		if !ok {
			continue
		}
		if v, ok := col[district]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
