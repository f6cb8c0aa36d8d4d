// Package classify assigns categories to point features through an ordered
// rule cascade. Rules are evaluated top to bottom and the first match wins,
// so precedence is auditable: moving a rule changes behavior, nothing else
// does. Substring predicates fold case; equality predicates are exact.
package classify

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

// DefaultCategory is returned when no rule matches.
const DefaultCategory = "other"

// Predicate tests one tag attribute. Exactly one matcher field must be set.
type Predicate struct {
	Attr        string   `yaml:"attr"`
	Equals      string   `yaml:"equals,omitempty"`
	NotEquals   string   `yaml:"not_equals,omitempty"`
	In          []string `yaml:"in,omitempty"`
	Contains    []string `yaml:"contains,omitempty"`
	NotContains []string `yaml:"not_contains,omitempty"`
}

func (p Predicate) matches(tags map[string]string) bool {
	v := tags[p.Attr]
	switch {
	case p.Equals != "":
		return v == p.Equals
	case p.NotEquals != "":
		return v != p.NotEquals
	case len(p.In) > 0:
		for _, want := range p.In {
			if v == want {
				return true
			}
		}
		return false
	case len(p.Contains) > 0:
		folded := strings.ToLower(v)
		for _, sub := range p.Contains {
			if strings.Contains(folded, strings.ToLower(sub)) {
				return true
			}
		}
		return false
	case len(p.NotContains) > 0:
		folded := strings.ToLower(v)
		for _, sub := range p.NotContains {
			if strings.Contains(folded, strings.ToLower(sub)) {
				return false
			}
		}
		return true
	}
	return false
}

// Rule maps a predicate group to a category. A rule carries either Any
// (at least one predicate must hold) or All (every predicate must hold),
// never both.
type Rule struct {
	Category string      `yaml:"category"`
	Any      []Predicate `yaml:"any,omitempty"`
	All      []Predicate `yaml:"all,omitempty"`
}

func (r Rule) matches(tags map[string]string) bool {
	if len(r.All) > 0 {
		for _, p := range r.All {
			if !p.matches(tags) {
				return false
			}
		}
		return true
	}
	for _, p := range r.Any {
		if p.matches(tags) {
			return true
		}
	}
	return false
}

// Classify returns the category of the first matching rule and its index,
// or (DefaultCategory, -1) when nothing matches.
func Classify(rules []Rule, tags map[string]string) (string, int) {
	for i, r := range rules {
		if r.matches(tags) {
			return r.Category, i
		}
	}
	return DefaultCategory, -1
}

// Validate checks that every rule has a category and exactly one non-empty
// predicate group, and that every predicate names an attribute with exactly
// one matcher.
func Validate(rules []Rule) error {
	if len(rules) == 0 {
		return eris.New("classify: empty rule list")
	}
	for i, r := range rules {
		if r.Category == "" {
			return eris.Errorf("classify: rule %d has no category", i)
		}
		if (len(r.Any) > 0) == (len(r.All) > 0) {
			return eris.Errorf("classify: rule %d (%s) must set exactly one of any/all", i, r.Category)
		}
		preds := append(append([]Predicate{}, r.Any...), r.All...)
		for j, p := range preds {
			if p.Attr == "" {
				return eris.Errorf("classify: rule %d (%s) predicate %d has no attr", i, r.Category, j)
			}
			matchers := 0
			if p.Equals != "" {
				matchers++
			}
			if p.NotEquals != "" {
				matchers++
			}
			if len(p.In) > 0 {
				matchers++
			}
			if len(p.Contains) > 0 {
				matchers++
			}
			if len(p.NotContains) > 0 {
				matchers++
			}
			if matchers != 1 {
				return eris.Errorf("classify: rule %d (%s) predicate %d on %q must set exactly one matcher",
					i, r.Category, j, p.Attr)
			}
		}
	}
	return nil
}

// LoadRules reads an ordered rule cascade from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.New(errkind.NoData, eris.Wrapf(err, "classify: rules file %s", path))
		}
		return nil, eris.Wrapf(err, "classify: read rules file %s", path)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "classify: parse rules file %s", path))
	}
	if err := Validate(rules); err != nil {
		return nil, errkind.New(errkind.MalformedInput, err)
	}
	return rules, nil
}

// DefaultTransitRules is the built-in cascade for public transport stops.
// Identification favors the strong signals (operator, network, name) before
// generic OSM attributes, and the generic public_transport values map to
// neutral categories at the bottom.
func DefaultTransitRules() []Rule {
	return []Rule{
		{Category: "s_bahn", Any: []Predicate{
			{Attr: "operator", Contains: []string{"s-bahn", "db regio"}},
			{Attr: "network", Contains: []string{"s-bahn", "stuttgart s-bahn"}},
			{Attr: "name", Contains: []string{"s-bahn", "s "}},
		}},
		{Category: "u_bahn", Any: []Predicate{
			{Attr: "railway", Equals: "subway_entrance"},
			{Attr: "operator", Contains: []string{"u-bahn", "subway"}},
			{Attr: "network", Contains: []string{"u-bahn", "subway"}},
			{Attr: "name", Contains: []string{"u-bahn", "u "}},
		}},
		{Category: "regional_train", All: []Predicate{
			{Attr: "operator", Contains: []string{"db ", "deutsche bahn"}},
			{Attr: "operator", NotContains: []string{"s-bahn"}},
		}},
		{Category: "tram", Any: []Predicate{
			{Attr: "railway", Equals: "tram_stop"},
			{Attr: "railway", Equals: "light_rail"},
		}},
		{Category: "tram", All: []Predicate{
			{Attr: "operator", Contains: []string{"ssb", "stuttgarter straßenbahn"}},
			{Attr: "public_transport", In: []string{"platform", "stop_position"}},
			{Attr: "highway", NotEquals: "bus_stop"},
		}},
		{Category: "bus", Any: []Predicate{
			{Attr: "highway", Equals: "bus_stop"},
		}},
		{Category: "bus_station", Any: []Predicate{
			{Attr: "amenity", Equals: "bus_station"},
		}},
		{Category: "taxi", Any: []Predicate{
			{Attr: "amenity", Equals: "taxi"},
		}},
		{Category: "railway_station", Any: []Predicate{
			{Attr: "railway", In: []string{"station", "halt", "stop"}},
		}},
		{Category: "railway_platform", Any: []Predicate{
			{Attr: "railway", Equals: "platform"},
		}},
		{Category: "subway", Any: []Predicate{
			{Attr: "railway", Equals: "subway_entrance"},
		}},
		{Category: "platform", Any: []Predicate{
			{Attr: "public_transport", Equals: "platform"},
		}},
		{Category: "stop_position", Any: []Predicate{
			{Attr: "public_transport", Equals: "stop_position"},
		}},
		{Category: "transport_hub", Any: []Predicate{
			{Attr: "public_transport", Equals: "station"},
		}},
		{Category: "stop_area", Any: []Predicate{
			{Attr: "public_transport", Equals: "stop_area"},
		}},
		{Category: "transport_service", Any: []Predicate{
			{Attr: "public_transport", In: []string{
				"entrance", "info_board", "platform_edge", "platform_access", "service_center",
			}},
		}},
	}
}

// AmenityCategory categorizes a non-transit feature by tag precedence:
// amenity, then shop, then leisure.
func AmenityCategory(tags map[string]string) string {
	for _, attr := range []string{"amenity", "shop", "leisure"} {
		if v := tags[attr]; v != "" {
			return v
		}
	}
	return DefaultCategory
}
