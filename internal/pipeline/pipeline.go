// Package pipeline loads documents and renders them through the fragmenter
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ppiankov/annofrag/internal/cache"
	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/render"
	"github.com/ppiankov/annofrag/internal/stats"
	"github.com/ppiankov/annofrag/internal/validate"
	"go.uber.org/zap"
)

// Pipeline orchestrates load, validate, fragment, render
type Pipeline struct {
	fetcher     *Fetcher
	fragmenter  *fragment.Fragmenter
	reports     *cache.Reports // nil when caching is disabled
	config      model.Config
	logger      *zap.Logger
	stdin       io.Reader
	inputFormat string // overrides format detection when set
}

// New creates a new pipeline with the given configuration
func New(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	placement, err := fragment.ParseAnchorPlacement(cfg.Fragment.AnchorPlacement)
	if err != nil {
		return nil, fmt.Errorf("configure fragmenter: %w", err)
	}
	if _, err := render.ForFormat(cfg.Render.Format, render.Options{}); err != nil {
		return nil, fmt.Errorf("configure renderer: %w", err)
	}

	p := &Pipeline{
		fetcher: NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, false,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
		fragmenter: fragment.New(
			fragment.WithMaxRanges(cfg.Fragment.MaxRanges),
			fragment.WithAnchorPlacement(placement),
		),
		config: *cfg,
		logger: logger,
		stdin:  os.Stdin,
	}
	if cfg.Cache.Enabled {
		p.reports = cache.NewReports(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL, cfg.Cache.Compress))
	}
	return p, nil
}

// WithFormat returns a pipeline sharing p's fetcher and cache that renders
// to another format
func (p *Pipeline) WithFormat(format string) (*Pipeline, error) {
	if _, err := render.ForFormat(format, render.Options{}); err != nil {
		return nil, err
	}
	cp := *p
	cp.config.Render.Format = format
	return &cp, nil
}

// SetStdin replaces the reader used for the "-" source
func (p *Pipeline) SetStdin(r io.Reader) {
	p.stdin = r
}

// SetInputFormat forces every source to be decoded as format; "" restores
// detection by extension and content type
func (p *Pipeline) SetInputFormat(format string) error {
	switch format {
	case "", FormatJSON, FormatYAML, FormatTOML, FormatHTML:
		p.inputFormat = format
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Result contains the complete render result
type Result struct {
	Document model.Document
	Report   *model.RenderReport
}

// Render loads a source and renders it
func (p *Pipeline) Render(ctx context.Context, source string) (*Result, error) {
	doc, err := p.LoadDocument(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	result, err := p.RenderDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	result.Report.Source = source
	return result, nil
}

// RenderDocument validates (or clamps), fragments and renders one document
func (p *Pipeline) RenderDocument(ctx context.Context, doc model.Document) (*Result, error) {
	log := p.logger.With(zap.String("document", doc.ID))

	doc, issues, err := p.Prepare(doc)
	if err != nil {
		return nil, err
	}
	if p.config.Validate.Clamp && len(issues) > 0 {
		log.Info("clamped ranges", zap.Int("issues", len(issues)))
	}

	key, err := p.cacheKey(doc)
	if err != nil {
		return nil, err
	}
	if report, ok := p.cached(key, log); ok {
		report.Issues = issues
		return &Result{Document: doc, Report: report}, nil
	}

	opts := render.Options{WithIDs: p.config.Render.WithIDs, EscapeText: p.config.Render.EscapeText}
	renderer, err := render.ForFormat(p.config.Render.Format, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	collector := stats.NewCollector()

	start := time.Now()
	if err := p.fragmenter.Run(doc.Text, doc.Ranges, fragment.Tee(renderer, collector)); err != nil {
		return nil, fmt.Errorf("fragment: %w", err)
	}
	segments, err := p.fragmenter.Segments(doc.Text, doc.Ranges)
	if err != nil {
		return nil, fmt.Errorf("fragment: %w", err)
	}

	report := &model.RenderReport{
		DocumentID: doc.ID,
		RenderedAt: time.Now().UTC(),
		Format:     p.config.Render.Format,
		Stats:      collector.Stats(len(segments)),
		Issues:     issues,
	}
	if events, ok := renderer.(*render.Events); ok {
		report.Events = events.Records
	} else {
		out, err := renderer.Output()
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		report.Output = out
	}

	log.Debug("rendered",
		zap.Int("ranges", len(doc.Ranges)),
		zap.Int("fragments", report.Stats.Fragments),
		zap.Duration("took", time.Since(start)))

	p.store(key, report, log)
	return &Result{Document: doc, Report: report}, nil
}

// Prepare clamps doc when configured to, otherwise only reports its issues.
// Tag and attribute names that cannot be written as markup are refused
// with validate.ErrInvalidName; offset problems are left to the fragmenter.
func (p *Pipeline) Prepare(doc model.Document) (model.Document, []model.Issue, error) {
	if p.config.Validate.Clamp {
		doc, issues := validate.Clamp(doc)
		return doc, issues, nil
	}
	issues := validate.Check(doc)
	for _, is := range issues {
		if is.Kind == model.IssueInvalidTag || is.Kind == model.IssueInvalidAttr {
			return doc, issues, fmt.Errorf("range %d: %w: %s", is.Index, validate.ErrInvalidName, is.Message)
		}
	}
	return doc, issues, nil
}

// Fragmenter returns the configured fragmenter
func (p *Pipeline) Fragmenter() *fragment.Fragmenter {
	return p.fragmenter
}

// cacheKey covers the document and every setting that changes the output
func (p *Pipeline) cacheKey(doc model.Document) (string, error) {
	if p.reports == nil {
		return "", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	r := p.config.Render
	return cache.CacheKey(
		data,
		[]byte(r.Format),
		[]byte(strconv.FormatBool(r.WithIDs)),
		[]byte(strconv.FormatBool(r.EscapeText)),
		[]byte(p.config.Fragment.AnchorPlacement),
	), nil
}

func (p *Pipeline) cached(key string, log *zap.Logger) (*model.RenderReport, bool) {
	if key == "" {
		return nil, false
	}
	report, layer, err := p.reports.Get(key)
	if err != nil {
		log.Warn("discarding cache entry", zap.Error(err))
		return nil, false
	}
	if report == nil {
		return nil, false
	}
	log.Debug("cache hit", zap.String("layer", string(layer)))
	return report, true
}

// store never fails the render; a broken cache only costs speed
func (p *Pipeline) store(key string, report *model.RenderReport, log *zap.Logger) {
	if key == "" {
		return
	}
	if err := p.reports.Put(key, report); err != nil {
		log.Warn("cache write failed", zap.Error(err))
	}
}
