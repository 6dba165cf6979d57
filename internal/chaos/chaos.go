// Package chaos derives per-threat, per-domain and global chaos indices from a record set.
// The functions hold no state; the same records and reference time always give the same result.
package chaos

import (
	"math"
	"sort"
	"time"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/normalizer"
)

const (
	regionBonusPerRegion = 5
	regionBonusCap       = 25
	credibleSourceBonus  = 3
	decayWindowHours     = 168.0
	decayFloor           = 0.5
	activeDomainIndex    = 30
	convergenceStep      = 0.10
)

// CategoryMultipliers escalate categories with a wider blast radius.
var CategoryMultipliers = map[domain.Category]float64{
	domain.CategoryConflict: 1.4,
	domain.CategoryHealth:   1.3,
	domain.CategoryCyber:    1.25,
	domain.CategoryAI:       1.2,
	domain.CategoryClimate:  1.15,
	domain.CategoryNatural:  1.1,
	domain.CategoryEconomic: 1.1,
}

// DomainWeight is one entry of the global index weight table.
type DomainWeight struct {
	Category domain.Category
	Weight   float64
}

// GlobalWeights lists the six domains feeding the global index.
var GlobalWeights = []DomainWeight{
	{domain.CategoryCyber, 0.20},
	{domain.CategoryHealth, 0.25},
	{domain.CategoryClimate, 0.15},
	{domain.CategoryConflict, 0.25},
	{domain.CategoryEconomic, 0.10},
	{domain.CategoryAI, 0.05},
}

// ThreatScore is the decayed, escalated severity of a single record in [0,100].
func ThreatScore(rec domain.ThreatRecord, now time.Time) float64 {
	return clamp(NominalScore(rec) * RecencyDecay(rec.Timestamp, now))
}

// NominalScore is the undecayed, unclamped score: severity plus spread and source
// bonuses, escalated by the category multiplier.
func NominalScore(rec domain.ThreatRecord) float64 {
	spread := math.Min(float64(len(rec.Regions)*regionBonusPerRegion), regionBonusCap)
	credible := 0
	for _, src := range rec.Sources {
		if normalizer.IsCredibleSource(src) {
			credible++
		}
	}
	base := float64(rec.Severity) + spread + float64(credible*credibleSourceBonus)
	return base * multiplier(rec.Category)
}

// RecencyDecay falls linearly to half weight over one week and never below it.
func RecencyDecay(ts, now time.Time) float64 {
	hours := now.Sub(ts).Hours()
	if hours < 0 || ts.IsZero() {
		hours = 0
	}
	return math.Max(decayFloor, 1-hours/decayWindowHours)
}

// WeightedIndex is the quadratic-weighted mean of scores: weight = (score/100)^2.
func WeightedIndex(scores []float64) float64 {
	var sum, weights float64
	for _, s := range scores {
		w := (s / 100) * (s / 100)
		sum += s * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return clamp(sum / weights)
}

// DomainIndex is the weighted index of the records in category; 0 when there are none.
func DomainIndex(records []domain.ThreatRecord, category domain.Category, now time.Time) int {
	var scores []float64
	for _, rec := range records {
		if rec.Category == category {
			scores = append(scores, ThreatScore(rec, now))
		}
	}
	return round(WeightedIndex(scores))
}

// DomainIndices computes the index of every weighted domain.
func DomainIndices(records []domain.ThreatRecord, now time.Time) map[domain.Category]int {
	out := make(map[domain.Category]int, len(GlobalWeights))
	for _, dw := range GlobalWeights {
		out[dw.Category] = DomainIndex(records, dw.Category, now)
	}
	return out
}

// GlobalIndex combines the domain indices with GlobalWeights and the convergence boost.
func GlobalIndex(records []domain.ThreatRecord, now time.Time) int {
	return GlobalFromDomains(DomainIndices(records, now))
}

// GlobalFromDomains applies the weight table; more than two domains above 30 boost the
// result by 10% per extra active domain.
func GlobalFromDomains(indices map[domain.Category]int) int {
	var total float64
	active := 0
	for _, dw := range GlobalWeights {
		idx := indices[dw.Category]
		total += dw.Weight * float64(idx)
		if idx > activeDomainIndex {
			active++
		}
	}
	if active > 2 {
		total *= 1 + convergenceStep*float64(active-2)
	}
	return round(clamp(total))
}

// ScoredThreat pairs a record with its chaos score.
type ScoredThreat struct {
	Record domain.ThreatRecord `json:"record"`
	Score  int                 `json:"score"`
}

// Report is the read-time summary consumed by reporting code.
type Report struct {
	Global      int                     `json:"global"`
	Domains     map[domain.Category]int `json:"domains"`
	Counts      map[domain.Category]int `json:"counts"`
	Top         []ScoredThreat          `json:"top"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// BuildReport computes every index plus the top n threats by score.
func BuildReport(records []domain.ThreatRecord, now time.Time, top int) Report {
	domains := DomainIndices(records, now)
	counts := make(map[domain.Category]int)
	scored := make([]ScoredThreat, 0, len(records))
	for _, rec := range records {
		counts[rec.Category]++
		scored = append(scored, ScoredThreat{Record: rec, Score: round(ThreatScore(rec, now))})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})
	if top >= 0 && len(scored) > top {
		scored = scored[:top]
	}
	return Report{
		Global:      GlobalFromDomains(domains),
		Domains:     domains,
		Counts:      counts,
		Top:         scored,
		GeneratedAt: now.UTC(),
	}
}

func multiplier(c domain.Category) float64 {
	if m, ok := CategoryMultipliers[c]; ok {
		return m
	}
	return 1.0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round(v float64) int {
	return int(math.Round(v))
}
