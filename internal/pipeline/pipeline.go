package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/observability"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

// Loader parses an upload into a dataset.
type Loader interface {
	Load(ctx context.Context, r io.Reader) (*domain.Dataset, error)
}

// HeatmapRenderer draws a correlation matrix as a PNG image.
type HeatmapRenderer interface {
	Heatmap(corr report.Correlation) ([]byte, error)
}

// Publisher announces a generated report to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, summary report.Summary) error
}

// Result is a generated report plus its pre-rendered heatmap.
type Result struct {
	Report  *report.Report
	Heatmap []byte
}

// DefaultPublishTimeout bounds one report event send when Options leaves it unset.
const DefaultPublishTimeout = 10 * time.Second

// Options tunes report generation.
type Options struct {
	PreviewRows    int
	CacheSize      int
	PublishTimeout time.Duration
}

func (o Options) publishTimeout() time.Duration {
	if o.PublishTimeout <= 0 {
		return DefaultPublishTimeout
	}
	return o.PublishTimeout
}

// Pipeline runs load, classify, aggregate and render for each upload and
// keeps recent results for re-rendering.
type Pipeline struct {
	loader    Loader
	heatmap   HeatmapRenderer
	publisher Publisher
	cache     *resultCache
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool
}

// New creates a Pipeline. Pass a nil publisher to disable report events.
func New(l Loader, h HeatmapRenderer, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	p := &Pipeline{
		loader:    l,
		heatmap:   h,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
	p.cache = newResultCache(opts.CacheSize, p.onEvict)
	return p
}

// SetReady toggles whether the service accepts uploads.
func (p *Pipeline) SetReady(ready bool) {
	p.ready.Store(ready)
}

// CheckReadiness returns nil while the pipeline accepts uploads.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline is not accepting uploads")
	}
	return nil
}

// Lookup returns a cached result by report ID.
func (p *Pipeline) Lookup(id string) (*Result, bool) {
	res, ok := p.cache.Get(id)
	p.observeCache(ok)
	return res, ok
}

// Generate analyses one upload. Identical uploads under the same policy are
// served from the cache. Errors from bad input are domain errors; see
// domain.ErrorKind.
func (p *Pipeline) Generate(ctx context.Context, upload []byte, policy domain.InvalidPolicy) (*Result, error) {
	start := time.Now()
	id := report.Fingerprint(upload, policy)

	if res, ok := p.cache.Get(id); ok {
		p.observeCache(true)
		p.metrics.Uploads.WithLabelValues("ok").Inc()
		p.logger.Debug("report served from cache", "report_id", id)
		return res, nil
	}
	p.observeCache(false)

	res, err := p.generate(ctx, id, upload, policy)
	if err != nil {
		p.metrics.Uploads.WithLabelValues(domain.ErrorKind(err)).Inc()
		return nil, err
	}

	p.cache.Add(id, res)
	p.metrics.Uploads.WithLabelValues("ok").Inc()
	p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	p.observeReport(res.Report)

	p.logger.Info("report generated",
		"report_id", id,
		"rows", res.Report.Rows,
		"classified", res.Report.Classified(),
		"skipped", len(res.Report.Skipped),
		"unclassified", len(res.Report.Unclassified),
		"policy", policy,
		"duration", time.Since(start),
	)

	p.publish(ctx, res.Report)
	return res, nil
}

func (p *Pipeline) generate(ctx context.Context, id string, upload []byte, policy domain.InvalidPolicy) (*Result, error) {
	ds, err := p.loader.Load(ctx, bytes.NewReader(upload))
	if err != nil {
		return nil, fmt.Errorf("load upload: %w", err)
	}
	p.metrics.RecordsLoaded.Add(float64(ds.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep, err := report.Build(ds, id, report.Options{Policy: policy, PreviewRows: p.opts.PreviewRows})
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	png, err := p.heatmap.Heatmap(rep.Correlation)
	if err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	return &Result{Report: rep, Heatmap: png}, nil
}

// publish sends the report summary. Failures are logged and counted but
// never fail the upload. The send outlives the caller's cancellation and is
// bounded by Options.PublishTimeout.
func (p *Pipeline) publish(ctx context.Context, rep *report.Report) {
	if p.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.publishTimeout())
	defer cancel()

	if err := p.publisher.Publish(ctx, rep.Summary()); err != nil {
		p.metrics.EventsFailed.Inc()
		p.logger.Warn("report event publish failed", "report_id", rep.ID, "error", err)
		return
	}
	p.metrics.EventsPublished.Inc()
}

func (p *Pipeline) observeReport(rep *report.Report) {
	for _, c := range rep.Categories {
		p.metrics.RecordsByLabel.WithLabelValues(string(c.Category)).Add(float64(c.Count))
	}
	if n := len(rep.Skipped); n > 0 {
		p.metrics.InvalidRows.WithLabelValues(string(domain.PolicySkip)).Add(float64(n))
	}
	if n := len(rep.Unclassified); n > 0 {
		p.metrics.InvalidRows.WithLabelValues(string(domain.PolicyNull)).Add(float64(n))
	}
}

func (p *Pipeline) onEvict(id string, _ *Result) {
	p.metrics.ReportCache.WithLabelValues("evicted").Inc()
	p.logger.Debug("report evicted from cache", "report_id", id)
}

func (p *Pipeline) observeCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.metrics.ReportCache.WithLabelValues(result).Inc()
}
