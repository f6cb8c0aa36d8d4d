package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DefaultCascade(t *testing.T) {
	rules := DefaultTransitRules()
	require.NoError(t, Validate(rules))

	cases := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"sbahn operator", map[string]string{"operator": "DB Regio AG"}, "s_bahn"},
		{"sbahn network", map[string]string{"network": "Stuttgart S-Bahn"}, "s_bahn"},
		{"ubahn entrance", map[string]string{"railway": "subway_entrance"}, "u_bahn"},
		{"ubahn name", map[string]string{"name": "U 6 Gerlingen"}, "u_bahn"},
		{"regional db", map[string]string{"operator": "DB Fernverkehr AG"}, "regional_train"},
		{"tram stop", map[string]string{"railway": "tram_stop"}, "tram"},
		{"light rail", map[string]string{"railway": "light_rail"}, "tram"},
		{
			"ssb platform",
			map[string]string{"operator": "SSB", "public_transport": "platform"},
			"tram",
		},
		{
			"ssb bus stop is a bus",
			map[string]string{"operator": "SSB", "public_transport": "platform", "highway": "bus_stop"},
			"bus",
		},
		{"bus stop", map[string]string{"highway": "bus_stop"}, "bus"},
		{"bus station", map[string]string{"amenity": "bus_station"}, "bus_station"},
		{"taxi", map[string]string{"amenity": "taxi"}, "taxi"},
		{"station", map[string]string{"railway": "station"}, "railway_station"},
		{"halt", map[string]string{"railway": "halt"}, "railway_station"},
		{"platform rail", map[string]string{"railway": "platform"}, "railway_platform"},
		{"pt platform", map[string]string{"public_transport": "platform"}, "platform"},
		{"pt stop position", map[string]string{"public_transport": "stop_position"}, "stop_position"},
		{"pt station", map[string]string{"public_transport": "station"}, "transport_hub"},
		{"pt stop area", map[string]string{"public_transport": "stop_area"}, "stop_area"},
		{"pt entrance", map[string]string{"public_transport": "entrance"}, "transport_service"},
		{"no tags", map[string]string{}, "other"},
		{"unknown tags", map[string]string{"building": "yes"}, "other"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Classify(rules, tc.tags)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_OperatorBeatsGenericAttrs(t *testing.T) {
	rules := DefaultTransitRules()

	// a DB Regio station must classify by operator, not as railway_station
	got, idx := Classify(rules, map[string]string{
		"operator": "DB Regio AG",
		"railway":  "station",
	})
	assert.Equal(t, "s_bahn", got)
	assert.Equal(t, 0, idx)
}

func TestClassify_FirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Category: "first", Any: []Predicate{{Attr: "x", Equals: "1"}}},
		{Category: "second", Any: []Predicate{{Attr: "x", Equals: "1"}}},
	}
	got, idx := Classify(rules, map[string]string{"x": "1"})
	assert.Equal(t, "first", got)
	assert.Equal(t, 0, idx)

	reversed := []Rule{rules[1], rules[0]}
	got, idx = Classify(reversed, map[string]string{"x": "1"})
	assert.Equal(t, "second", got)
	assert.Equal(t, 0, idx)
}

func TestClassify_NoMatch(t *testing.T) {
	rules := []Rule{{Category: "a", Any: []Predicate{{Attr: "x", Equals: "1"}}}}

	got, idx := Classify(rules, map[string]string{"x": "2"})
	assert.Equal(t, DefaultCategory, got)
	assert.Equal(t, -1, idx)
}

func TestPredicate_ContainsFoldsCase(t *testing.T) {
	p := Predicate{Attr: "operator", Contains: []string{"deutsche bahn"}}

	assert.True(t, p.matches(map[string]string{"operator": "DEUTSCHE BAHN AG"}))
	assert.False(t, p.matches(map[string]string{"operator": "SSB AG"}))
	assert.False(t, p.matches(map[string]string{}))
}

func TestPredicate_NotContainsOnMissingAttr(t *testing.T) {
	p := Predicate{Attr: "operator", NotContains: []string{"s-bahn"}}

	assert.True(t, p.matches(map[string]string{}))
	assert.False(t, p.matches(map[string]string{"operator": "S-Bahn Stuttgart"}))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))

	assert.Error(t, Validate([]Rule{{Category: ""}}))

	// both groups set
	assert.Error(t, Validate([]Rule{{
		Category: "x",
		Any:      []Predicate{{Attr: "a", Equals: "1"}},
		All:      []Predicate{{Attr: "a", Equals: "1"}},
	}}))

	// predicate without matcher
	assert.Error(t, Validate([]Rule{{
		Category: "x",
		Any:      []Predicate{{Attr: "a"}},
	}}))

	// predicate with two matchers
	assert.Error(t, Validate([]Rule{{
		Category: "x",
		Any:      []Predicate{{Attr: "a", Equals: "1", In: []string{"2"}}},
	}}))

	assert.NoError(t, Validate(DefaultTransitRules()))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	content := `
- category: ferry
  any:
    - attr: amenity
      equals: ferry_terminal
- category: bus
  any:
    - attr: highway
      equals: bus_stop
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	got, _ := Classify(rules, map[string]string{"amenity": "ferry_terminal"})
	assert.Equal(t, "ferry", got)
}

func TestLoadRules_Missing(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRules_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := LoadRules(path)
	require.Error(t, err)
}

func TestAmenityCategory(t *testing.T) {
	assert.Equal(t, "pharmacy", AmenityCategory(map[string]string{"amenity": "pharmacy"}))
	assert.Equal(t, "supermarket", AmenityCategory(map[string]string{"shop": "supermarket"}))
	assert.Equal(t, "park", AmenityCategory(map[string]string{"leisure": "park"}))
	// amenity wins over shop
	assert.Equal(t, "cafe", AmenityCategory(map[string]string{"amenity": "cafe", "shop": "bakery"}))
	assert.Equal(t, DefaultCategory, AmenityCategory(nil))
}
