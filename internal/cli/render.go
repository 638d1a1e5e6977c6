package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/annofrag/internal/logging"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/pipeline"
	"github.com/spf13/cobra"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <source>",
	Short: "Render one annotated document",
	Long: `Render loads an annotated document, splits overlapping ranges into
properly nested fragments and prints the result.

The source is a file path, an http(s) URL, or "-" for stdin. Documents are
read as JSON, YAML, TOML or HTML, picked by extension or content type.

Example:
  annofrag render doc.json
  annofrag render doc.yaml --format html --with-ids
  annofrag render https://example.com/doc.json --json report.json
  cat doc.json | annofrag render - --format events`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	addRenderFlags(renderCmd.Flags())
	renderCmd.Flags().String("input-format", "", "force the input format (json, yaml, toml, html)")
	renderCmd.Flags().StringP("out", "o", "", "write rendered output to file instead of stdout")
	renderCmd.Flags().String("json", "", "write the full JSON report to file")
	renderCmd.Flags().Bool("summary", false, "print a summary to stderr")
}

// newPipeline builds a pipeline from the merged configuration of cmd
func newPipeline(cmd *cobra.Command, extra map[string]string) (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig(cmd, withKeys(extra))
	if err != nil {
		return nil, nil, err
	}
	applyNoCache(cmd.Flags(), cfg)

	p, err := pipeline.New(cfg, logging.L(cmd.Context()))
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	source := args[0]

	p, cfg, err := newPipeline(cmd, nil)
	if err != nil {
		return err
	}
	p.SetStdin(cmd.InOrStdin())

	inputFormat, _ := cmd.Flags().GetString("input-format")
	if err := p.SetInputFormat(inputFormat); err != nil {
		return err
	}

	result, err := p.Render(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("render %s: %w", source, err)
	}
	report := result.Report

	w := pipeline.NewWriter(os.Stderr)
	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		if err := w.WriteJSON(report, jsonPath); err != nil {
			return err
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
		}
	}

	if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
		if err := w.WriteOutput(report, outPath); err != nil {
			return err
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Output: %s\n", outPath)
		}
	} else {
		out, err := pipeline.ReportOutput(report)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		if report.Format != "events" {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}

	if summary, _ := cmd.Flags().GetBool("summary"); summary || cfg.Output.Verbose {
		w.PrintSummary(report)
	}
	return nil
}
