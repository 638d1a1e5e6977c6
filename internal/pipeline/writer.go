package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/annofrag/internal/model"
)

// Writer writes reports to files and summaries to a stream
type Writer struct {
	out io.Writer
}

// NewWriter creates a writer printing summaries to out
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{out: out}
}

// WriteJSON writes the full report as indented JSON
func (w *Writer) WriteJSON(report *model.RenderReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// WriteOutput writes only the rendered output: markup for markup and html
// formats, the event array for the events format
func (w *Writer) WriteOutput(report *model.RenderReport, path string) error {
	out, err := ReportOutput(report)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(out))
}

// ReportOutput returns what WriteOutput would write
func ReportOutput(report *model.RenderReport) (string, error) {
	if report.Format != "events" {
		return report.Output, nil
	}
	records := report.Events
	if records == nil {
		records = []model.EventRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data) + "\n", nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// PrintSummary prints a short human-readable summary
func (w *Writer) PrintSummary(report *model.RenderReport) {
	st := report.Stats
	name := report.DocumentID
	if report.Source != "" && report.Source != name {
		name = fmt.Sprintf("%s (%s)", name, report.Source)
	}

	_, _ = fmt.Fprintf(w.out, "\n📄 %s\n", name)
	_, _ = fmt.Fprintf(w.out, "   Format:     %s", report.Format)
	if report.Cached {
		_, _ = fmt.Fprint(w.out, " (cached)")
	}
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintf(w.out, "   Text:       %d runes\n", st.TextRunes)
	_, _ = fmt.Fprintf(w.out, "   Ranges:     %d (%d anchors)\n", st.Ranges, st.Anchors)
	_, _ = fmt.Fprintf(w.out, "   Segments:   %d\n", st.Segments)
	_, _ = fmt.Fprintf(w.out, "   Fragments:  %d (max depth %d)\n", st.Fragments, st.MaxDepth)
	if len(st.SplitRanges) > 0 {
		_, _ = fmt.Fprintf(w.out, "   Split:      %s\n", strings.Join(st.SplitRanges, ", "))
	}

	if len(report.Issues) > 0 {
		fixed := 0
		for _, is := range report.Issues {
			if is.Fixed {
				fixed++
			}
		}
		_, _ = fmt.Fprintf(w.out, "   Issues:     %d (%d fixed)\n", len(report.Issues), fixed)
	}

	for _, s := range st.Signals {
		icon := "ℹ️"
		switch s.Severity {
		case model.SeverityWarning:
			icon = "⚠️"
		case model.SeverityCritical:
			icon = "❌"
		}
		_, _ = fmt.Fprintf(w.out, "   %s  %s\n", icon, s.Description)
	}
}
