package collector

import (
	"context"
	"fmt"
	"sort"

	"ThreatScanner/internal/domain"
)

// Selectors locate the fields of one item on an HTML page.
type Selectors struct {
	Item    string
	Title   string
	Summary string
	Date    string
	Link    string
}

// Source is one configured upstream endpoint.
type Source struct {
	Name      string
	Kind      domain.SourceKind
	URL       string
	Category  domain.Category
	Priority  int
	Format    string
	Community string
	Limit     int
	Render    bool
	Selectors Selectors
}

// Collector fetches one class of source. Collect never fails as a whole: a broken
// source is logged by the implementation and contributes zero items.
type Collector interface {
	Kind() domain.SourceKind
	Collect(ctx context.Context, sources []Source) []domain.RawItem
}

// Registry keeps a mapping from source kinds to their collectors.
type Registry struct {
	collectors map[domain.SourceKind]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[domain.SourceKind]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[domain.SourceKind]Collector{}
	}
	r.collectors[c.Kind()] = c
}

// Resolve returns the collector for kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceKind) (Collector, error) {
	if c, ok := r.collectors[kind]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", kind)
}

// Kinds lists the registered kinds in a stable order.
func (r *Registry) Kinds() []domain.SourceKind {
	kinds := make([]domain.SourceKind, 0, len(r.collectors))
	for k := range r.collectors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ByPriority returns sources ordered by descending priority, keeping config order on ties.
func ByPriority(sources []Source) []Source {
	out := append([]Source(nil), sources...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// GroupByKind splits sources by collector kind.
func GroupByKind(sources []Source) map[domain.SourceKind][]Source {
	groups := make(map[domain.SourceKind][]Source)
	for _, src := range sources {
		groups[src.Kind] = append(groups[src.Kind], src)
	}
	return groups
}
