package parser

import (
	"context"
	"log/slog"
	"sync"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// StrategySource implements ItemSource by dispatching configured sources to registered collectors.
type StrategySource struct {
	registry *collector.Registry
	sources  []collector.Source
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires the collector registry with config-defined sources.
func NewStrategySource(reg *collector.Registry, sources []collector.Source, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// CollectAll runs every collector concurrently and waits for all of them.
func (s *StrategySource) CollectAll(ctx context.Context) []domain.RawItem {
	if s.registry == nil {
		s.warn("collector registry is not configured")
		return nil
	}

	groups := collector.GroupByKind(s.sources)
	s.debug("collect all", "sources", len(s.sources), "kinds", len(groups))

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		aggregated []domain.RawItem
	)
	for kind, sources := range groups {
		c, err := s.registry.Resolve(kind)
		if err != nil {
			s.warn("no collector for sources", "kind", kind, "sources", len(sources), "error", err)
			continue
		}

		wg.Add(1)
		go func(c collector.Collector, sources []collector.Source) {
			defer wg.Done()
			items := c.Collect(ctx, sources)
			s.debug("collector done", "kind", c.Kind(), "items", len(items))

			mu.Lock()
			aggregated = append(aggregated, items...)
			mu.Unlock()
		}(c, sources)
	}
	wg.Wait()

	s.debug("strategy source done", "total_items", len(aggregated))
	return aggregated
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
