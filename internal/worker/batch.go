package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/pipeline"
)

// Renderer renders one document source
type Renderer interface {
	Render(ctx context.Context, source string) (*pipeline.Result, error)
}

// RenderJob renders a single source
type RenderJob struct {
	Index    int
	Source   string
	Renderer Renderer
	Limiter  *Limiter
}

// Execute executes the render job
func (j *RenderJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Source); err != nil {
			return &RenderResult{Index: j.Index, Source: j.Source, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	result, err := j.Renderer.Render(ctx, j.Source)
	if err != nil {
		return &RenderResult{
			Index:  j.Index,
			Source: j.Source,
			Error:  err,
		}
	}
	return &RenderResult{
		Index:  j.Index,
		Source: j.Source,
		Report: result.Report,
	}
}

// RenderResult represents the result of a render job
type RenderResult struct {
	Index  int
	Source string
	Report *model.RenderReport
	Error  error
}

// GetError returns the error from the render result
func (r *RenderResult) GetError() error {
	return r.Error
}

// BatchProcessor renders many sources concurrently
type BatchProcessor struct {
	renderer    Renderer
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. A requestsPerSecond of
// zero or less disables rate limiting.
func NewBatchProcessor(renderer Renderer, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		renderer:    renderer,
		concurrency: concurrency,
	}
	if requestsPerSecond > 0 {
		b.limiter = NewLimiter(requestsPerSecond, burst)
	}
	return b
}

// ProcessSources renders sources concurrently. Results come back in the
// order of sources.
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*RenderResult {
	if len(sources) == 0 {
		return []*RenderResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	jobs := make([]Job, len(sources))
	for i, source := range sources {
		jobs[i] = &RenderJob{
			Index:    i,
			Source:   source,
			Renderer: b.renderer,
			Limiter:  b.limiter,
		}
	}

	results := pool.Run(jobs)

	renderResults := make([]*RenderResult, len(results))
	for i, result := range results {
		renderResults[i] = result.(*RenderResult)
	}
	sort.Slice(renderResults, func(i, j int) bool {
		return renderResults[i].Index < renderResults[j].Index
	})

	return renderResults
}

// ProcessFile reads sources from a file and renders them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*RenderResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads sources from a file, one path or URL per line.
// Blank lines and # comments are skipped and duplicates dropped.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
