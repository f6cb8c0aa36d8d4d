// Package scorer normalizes district KPI columns to comparable scores and
// combines them into weighted composites with competition rankings.
package scorer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// Method selects the normalization applied to a KPI column.
type Method string

const (
	MethodMinMax Method = "minmax"
	MethodZScore Method = "zscore"
	MethodRank   Method = "rank"
)

// ConstantFallback is the score given to every entity of a column whose
// values are all identical, where rescaling would divide by zero.
const ConstantFallback = 50.0

func constant(values map[string]float64) bool {
	var first float64
	seen := false
	for _, v := range values {
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

func fill(values map[string]float64, v float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k := range values {
		out[k] = v
	}
	return out
}

// MinMax linearly rescales a column to 0..100 over its observed bounds.
func MinMax(values map[string]float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}
	if constant(values) {
		return fill(values, ConstantFallback)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = (v - lo) / (hi - lo) * 100
	}
	return out
}

// MinMaxBounds rescales against configured bounds, clamping to 0..100.
func MinMaxBounds(values map[string]float64, lo, hi float64) map[string]float64 {
	if lo == hi {
		return fill(values, ConstantFallback)
	}

	out := make(map[string]float64, len(values))
	for k, v := range values {
		s := (v - lo) / (hi - lo) * 100
		out[k] = math.Max(0, math.Min(100, s))
	}
	return out
}

// ZScore standardizes a column to mean 0 and unit standard deviation.
// Unlike the other methods the output is unbounded.
func ZScore(values map[string]float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}
	if constant(values) {
		return fill(values, ConstantFallback)
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))

	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = (v - mean) / std
	}
	return out
}

// RankPercentile maps each value to the share of other values strictly
// below it, scaled to 0..100. The smallest value scores 0, the largest
// 100, ties share a score.
func RankPercentile(values map[string]float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}
	if constant(values) {
		return fill(values, ConstantFallback)
	}

	out := make(map[string]float64, len(values))
	n := float64(len(values) - 1)
	for k, v := range values {
		below := 0
		for _, other := range values {
			if other < v {
				below++
			}
		}
		out[k] = float64(below) / n * 100
	}
	return out
}

// Normalize dispatches a column to the chosen method.
func Normalize(method Method, values map[string]float64) (map[string]float64, error) {
	switch method {
	case MethodMinMax, "":
		return MinMax(values), nil
	case MethodZScore:
		return ZScore(values), nil
	case MethodRank:
		return RankPercentile(values), nil
	default:
		return nil, errkind.New(errkind.MalformedInput, eris.Errorf("scorer: unknown method %q", method))
	}
}

// Ranks assigns descending competition ranks: the highest value ranks 1
// and tied values share the smallest rank of their group.
func Ranks(values map[string]float64) map[string]int {
	out := make(map[string]int, len(values))
	for k, v := range values {
		rank := 1
		for _, other := range values {
			if other > v {
				rank++
			}
		}
		out[k] = rank
	}
	return out
}

// BuildScores normalizes every raw KPI column, folds the configured
// category groups into a weighted composite per district and ranks the
// composites. Columns without a configured weight stay in the score rows
// but do not enter the composite.
func BuildScores(raw map[string]map[string]float64, ws WeightSet, method Method) ([]model.ScoreRow, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	normalized := make(map[string]map[string]float64, len(raw))
	for name, col := range raw {
		n, err := Normalize(method, col)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: column %s", name)
		}
		normalized[name] = n
	}

	seen := make(map[string]bool)
	var districts []string
	for _, col := range raw {
		for d := range col {
			if !seen[d] {
				seen[d] = true
				districts = append(districts, d)
			}
		}
	}
	sort.Strings(districts)

	rows := make([]model.ScoreRow, 0, len(districts))
	composites := make(map[string]float64, len(districts))
	for _, d := range districts {
		row := model.ScoreRow{
			District:   d,
			Raw:        make(map[string]float64),
			Normalized: make(map[string]float64),
		}
		for name, col := range raw {
			if v, ok := col[d]; ok {
				row.Raw[name] = v
			}
		}
		for name, col := range normalized {
			if v, ok := col[d]; ok {
				row.Normalized[name] = v
			}
		}

		var composite float64
		for cat, w := range ws.MainCategories {
			if score, ok := ws.categoryScore(cat, d, normalized); ok {
				composite += w * score
			}
		}
		row.Composite = composite
		composites[d] = composite
		rows = append(rows, row)
	}

	ranks := Ranks(composites)
	for i := range rows {
		rows[i].Rank = ranks[rows[i].District]
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		return rows[i].District < rows[j].District
	})

	return rows, nil
}
