package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is the fixed threat domain enum.
type Category string

const (
	CategoryCyber        Category = "Cyber"
	CategoryHealth       Category = "Health"
	CategoryClimate      Category = "Climate"
	CategoryEconomic     Category = "Economic"
	CategoryConflict     Category = "Conflict"
	CategoryNatural      Category = "Natural"
	CategoryGeneral      Category = "General"
	CategoryIntelligence Category = "Intelligence"
	CategoryNews         Category = "News"
	CategoryAI           Category = "AI"
)

// Categories lists every member of the enum.
var Categories = []Category{
	CategoryCyber,
	CategoryHealth,
	CategoryClimate,
	CategoryEconomic,
	CategoryConflict,
	CategoryNatural,
	CategoryGeneral,
	CategoryIntelligence,
	CategoryNews,
	CategoryAI,
}

// Valid reports whether c belongs to the enum.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps a case-insensitive name onto the enum; unknown names yield false.
func ParseCategory(name string) (Category, bool) {
	for _, known := range Categories {
		if strings.EqualFold(string(known), strings.TrimSpace(name)) {
			return known, true
		}
	}
	return "", false
}

// Status marks the lifecycle of a published record.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// DefaultRegion is assigned when no region keyword matches.
const DefaultRegion = "Global"

// Votes is the credibility counter pair owned by the external voting feature.
type Votes struct {
	Credible    int `json:"credible"`
	NotCredible int `json:"notCredible"`
}

// ThreatRecord is the canonical unit produced by the normalizer and published into slots.
type ThreatRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Category    Category  `json:"category"`
	Severity    int       `json:"severity"`
	Confidence  int       `json:"confidence"`
	Regions     []string  `json:"regions"`
	Tags        []string  `json:"tags"`
	Sources     []string  `json:"sources"`
	Timestamp   time.Time `json:"timestamp"`
	CollectedAt time.Time `json:"collectedAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	Status      Status    `json:"status"`
	Votes       Votes     `json:"votes"`
}

// Slot is one numbered position of the shared store. Record is nil for a cleared slot.
type Slot struct {
	Key    string
	Record *ThreatRecord
}

// SlotWrite is one operation of a publish batch: a write when Record is set, a clear otherwise.
type SlotWrite struct {
	Key    string
	Record *ThreatRecord
}

// SlotNamespace is the shared store namespace holding the slots.
const SlotNamespace = "threats"

// SlotKey returns the zero-padded key of the 1-based slot index.
func SlotKey(index int) string {
	return fmt.Sprintf("threat_%03d", index)
}
