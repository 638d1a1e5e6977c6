package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/annofrag/internal/pipeline"
	"github.com/spf13/cobra"
)

// errGoldenMismatch is returned when verify finds a difference
var errGoldenMismatch = errors.New("rendered output differs from golden file")

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <source> <golden>",
	Short: "Compare rendered output with a golden file",
	Long: `Verify renders a document and compares the output with a golden file.
On mismatch a diff is printed and the command fails.

Example:
  annofrag verify doc.json doc.golden
  annofrag verify doc.json doc.golden.html --format html
  annofrag verify doc.json doc.golden --update`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	addRenderFlags(verifyCmd.Flags())
	verifyCmd.Flags().Bool("update", false, "rewrite the golden file with the current output")
	verifyCmd.Flags().Bool("patch", false, "print the difference as a patch instead of a colored diff")
}

func runVerify(cmd *cobra.Command, args []string) error {
	source, golden := args[0], args[1]

	p, _, err := newPipeline(cmd, nil)
	if err != nil {
		return err
	}
	p.SetStdin(cmd.InOrStdin())

	result, err := p.Render(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("render %s: %w", source, err)
	}

	if update, _ := cmd.Flags().GetBool("update"); update {
		if err := pipeline.UpdateGolden(result.Report, golden); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Updated golden file: %s\n", golden)
		return nil
	}

	res, err := pipeline.Verify(result.Report, golden)
	if err != nil {
		return err
	}
	if res.Match {
		fmt.Fprintf(os.Stderr, "✓ %s matches %s\n", source, golden)
		return nil
	}

	fmt.Fprintf(os.Stderr, "✗ %s differs from %s (%d changes)\n\n", source, golden, res.Changes)
	if asPatch, _ := cmd.Flags().GetBool("patch"); asPatch {
		fmt.Fprint(cmd.OutOrStdout(), res.Patch)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), res.Diff)
	}
	return errGoldenMismatch
}
