package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
)

func TestDefaultWeightSet(t *testing.T) {
	ws := DefaultWeightSet()

	require.NoError(t, ws.Validate())

	var sum float64
	for _, w := range ws.MainCategories {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.001)

	assert.Contains(t, ws.KPIGroups["public_transport"], kpi.KPIPTGravity)
	assert.Contains(t, ws.KPIGroups["green_access"], kpi.KPIGreenShare)
}

func TestLoadWeightSet_EmptyPathUsesDefault(t *testing.T) {
	ws, err := LoadWeightSet("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeightSet(), ws)
}

func TestLoadWeightSet_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`main_categories:
  public_transport: 0.7
  green_access: 0.3
kpi_groups:
  public_transport:
    - pt_gravity
`), 0o644))

	ws, err := LoadWeightSet(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, ws.MainCategories["public_transport"], 0.001)
	assert.Equal(t, []string{"pt_gravity"}, ws.KPIGroups["public_transport"])
}

func TestLoadWeightSet_MissingFileFallsBack(t *testing.T) {
	ws, err := LoadWeightSet(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NoData))
	assert.Equal(t, DefaultWeightSet(), ws)
}

func TestLoadWeightSet_MalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("main_categories: [not, a, map]"), 0o644))

	ws, err := LoadWeightSet(path)

	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.MalformedInput))
	assert.Equal(t, DefaultWeightSet(), ws)
}

func TestWeightSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		ws      WeightSet
		wantErr bool
	}{
		{"valid", WeightSet{MainCategories: map[string]float64{"a": 0.5}}, false},
		{"zero weight allowed", WeightSet{MainCategories: map[string]float64{"a": 0}}, false},
		{"empty", WeightSet{}, true},
		{"negative weight", WeightSet{MainCategories: map[string]float64{"a": -0.1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ws.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCategoryScore(t *testing.T) {
	normalized := map[string]map[string]float64{
		"pt_gravity":      {"mitte": 80, "ost": 20},
		"pt_stop_density": {"mitte": 60},
	}
	ws := WeightSet{
		MainCategories: map[string]float64{"public_transport": 1.0},
		KPIGroups: map[string][]string{
			"public_transport": {"pt_gravity", "pt_stop_density"},
		},
	}

	// Grouped: mean over the member columns present for the district.
	got, ok := ws.categoryScore("public_transport", "mitte", normalized)
	require.True(t, ok)
	assert.InDelta(t, 70, got, 0.001)

	// ost is missing from pt_stop_density, so only pt_gravity counts.
	got, ok = ws.categoryScore("public_transport", "ost", normalized)
	require.True(t, ok)
	assert.InDelta(t, 20, got, 0.001)

	// Ungrouped category reads the column directly.
	got, ok = ws.categoryScore("pt_gravity", "mitte", normalized)
	require.True(t, ok)
	assert.InDelta(t, 80, got, 0.001)

	// Unknown column and unknown district both miss.
	_, ok = ws.categoryScore("unknown", "mitte", normalized)
	assert.False(t, ok)
	_, ok = ws.categoryScore("public_transport", "sued", normalized)
	assert.False(t, ok)
}
