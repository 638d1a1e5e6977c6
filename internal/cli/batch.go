package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/annofrag/internal/pipeline"
	"github.com/ppiankov/annofrag/internal/worker"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Render many documents from a list in parallel",
	Long: `Batch renders many documents concurrently:
- Read sources from input file (one path or URL per line, # for comments)
- Render in parallel with a configurable worker count
- Remote sources are rate limited per host
- Write rendered output and a JSON report for each document

Example:
  annofrag batch sources.txt
  annofrag batch sources.txt --concurrency 10 --output-dir ./out
  annofrag batch sources.txt --format html --batch-timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addRenderFlags(batchCmd.Flags())
	batchCmd.Flags().Int("concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().String("output-dir", "", "output directory (default from config)")
	batchCmd.Flags().Float64("rps", 0, "requests per second per host for remote sources (default from config)")
	batchCmd.Flags().Duration("batch-timeout", 10*time.Minute, "total timeout for the batch")
}

var batchFlagKeys = map[string]string{
	"concurrency": "concurrency.workers",
	"output-dir":  "output.dir",
	"rps":         "rate_limiting.requests_per_second",
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	p, cfg, err := newPipeline(cmd, batchFlagKeys)
	if err != nil {
		return err
	}
	batchTimeout, _ := cmd.Flags().GetDuration("batch-timeout")
	workers := cfg.Concurrency.Workers
	outputDir := cfg.Output.Dir

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  annofrag batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Format:       %s\n", cfg.Render.Format)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(p, workers, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	fmt.Fprintf(os.Stderr, "⚙️  Rendering sources with %d workers...\n", workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\n")

	w := pipeline.NewWriter(os.Stderr)
	used := make(map[string]int)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		report := result.Report
		slug := uniqueName(used, sanitizeFilename(report.DocumentID))
		outPath := filepath.Join(outputDir, slug+outputExt(report.Format))
		jsonPath := filepath.Join(outputDir, slug+".report.json")

		if err := w.WriteOutput(report, outPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, err)
			continue
		}
		if err := w.WriteJSON(report, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d segments, %d split)\n", report.DocumentID, report.Stats.Segments, len(report.Stats.SplitRanges))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d documents failed", failureCount, len(results))
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		s = "document"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}

// uniqueName returns name, or name-N when name was already handed out
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, n+1)
}

// outputExt picks the file extension for a render format
func outputExt(format string) string {
	switch format {
	case "html":
		return ".html"
	case "events":
		return ".events.json"
	default:
		return ".txt"
	}
}
