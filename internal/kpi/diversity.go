package kpi

import "math"

// Entropy returns the Shannon entropy (natural log) of a category
// multiset: H = -Σ p·ln(p). An empty multiset has entropy 0 by
// convention; a single category gives 0 and a uniform distribution over
// u categories gives ln(u).
func Entropy(categories []string) float64 {
	if len(categories) == 0 {
		return 0
	}

	counts := make(map[string]int, len(categories))
	for _, c := range categories {
		counts[c]++
	}

	total := float64(len(categories))
	var h float64
	for _, n := range counts {
		p := float64(n) / total
		h -= p * math.Log(p)
	}
	return h
}

// DiversityAt computes the entropy of feature categories within radiusM
// of (lat, lng).
func (ix *Index) DiversityAt(lat, lng, radiusM float64) float64 {
	near := ix.Within(lat, lng, radiusM)
	if len(near) == 0 {
		return 0
	}

	cats := make([]string, 0, len(near))
	for _, n := range near {
		cats = append(cats, n.Feature.Category)
	}
	return Entropy(cats)
}
