package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ThreatScanner/internal/chaos"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/normalizer"
	"ThreatScanner/internal/ports"
)

const defaultDigestSize = 5

const tracerName = "ThreatScanner/internal/usecase"

// PipelineDeps wires all driven adapters into the collection pipeline.
type PipelineDeps struct {
	Source    ports.ItemSource
	Publisher *SlotPublisher
	Forwarder ports.Forwarder
	Notifier  ports.Notifier
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	// Now is the cycle clock; defaults to time.Now.
	Now func() time.Time
	// DigestSize is the number of top threats listed in the notification digest.
	DigestSize int
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Pipeline implements one collection cycle: collect, normalize, filter, select, publish.
type Pipeline struct {
	source     ports.ItemSource
	publisher  *SlotPublisher
	forwarder  ports.Forwarder
	notifier   ports.Notifier
	metrics    *metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
	digestSize int
	tracer     trace.Tracer
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:     deps.Source,
		publisher:  deps.Publisher,
		forwarder:  deps.Forwarder,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
		digestSize: deps.DigestSize,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.digestSize <= 0 {
		p.digestSize = defaultDigestSize
	}
	provider := deps.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	p.tracer = provider.Tracer(tracerName)
	return p
}

// RunCycle executes one full cycle. Only a publish failure fails the cycle; forwarding and
// notification problems are logged.
func (p *Pipeline) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	ctx, span := p.tracer.Start(ctx, "cycle")
	defer span.End()

	var report domain.CycleReport
	if p.source == nil {
		return report, errors.New("item source is not configured")
	}
	if p.publisher == nil {
		return report, errors.New("slot publisher is not configured")
	}

	raw := p.source.CollectAll(ctx)
	report.Collected = len(raw)
	p.metrics.ItemsCollected(raw)

	now := p.now().UTC()
	records := make([]domain.ThreatRecord, 0, len(raw))
	for _, item := range raw {
		rec, err := normalizer.Normalize(item, item.CategoryHint, now)
		if err != nil {
			p.logger.Debug("item skipped", "source", item.SourceName, "error", err)
			continue
		}
		records = append(records, rec)
	}
	report.Normalized = len(records)

	relevant := records[:0:0]
	for _, rec := range records {
		if normalizer.IsRelevant(rec) {
			relevant = append(relevant, rec)
		}
	}
	relevant = Dedupe(relevant)
	report.Relevant = len(relevant)

	selected := Select(relevant, p.publisher.Capacity())
	report.Selected = len(selected)

	span.SetAttributes(
		attribute.Int("collected", report.Collected),
		attribute.Int("relevant", report.Relevant),
		attribute.Int("selected", report.Selected),
	)

	published, err := p.publisher.Publish(ctx, selected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return report, fmt.Errorf("publish slots: %w", err)
	}
	p.metrics.Selected(len(published))
	p.logger.Info("slots published",
		"collected", report.Collected,
		"normalized", report.Normalized,
		"relevant", report.Relevant,
		"selected", report.Selected,
	)

	report.Forwarded, report.ForwardFailed = p.forward(ctx, published)

	chaosReport := chaos.BuildReport(published, now, p.digestSize)
	p.metrics.ChaosGlobal(chaosReport.Global)
	p.notify(ctx, chaosReport)

	return report, nil
}

func (p *Pipeline) forward(ctx context.Context, records []domain.ThreatRecord) (delivered, failed int) {
	if p.forwarder == nil || len(records) == 0 {
		return 0, 0
	}
	outcomes := p.forwarder.ForwardAll(ctx, records)
	p.metrics.Forwarded(outcomes)
	for _, o := range outcomes {
		if o.Delivered {
			delivered++
			continue
		}
		failed++
		p.logger.Warn("forward failed", "record", o.RecordID, "attempts", o.Attempts, "error", o.Err)
	}
	return delivered, failed
}

func (p *Pipeline) notify(ctx context.Context, report chaos.Report) {
	if p.notifier == nil || len(report.Top) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
		p.logger.Warn("digest not delivered", "error", err)
	}
}

func buildDigestMessage(report chaos.Report) string {
	if len(report.Top) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Threat digest* (global chaos index %d)\n\n", report.Global)
	for _, scored := range report.Top {
		rec := scored.Record
		fmt.Fprintf(&b, "- [%s] %s\nSeverity: %d, score %d, %s\n",
			rec.Category,
			rec.Title,
			rec.Severity,
			scored.Score,
			strings.Join(rec.Regions, ", "))
		if len(rec.Sources) > 0 {
			b.WriteString(rec.Sources[0])
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
