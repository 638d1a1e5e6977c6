package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/annofrag/internal/index"
	"github.com/ppiankov/annofrag/internal/pipeline"
	"github.com/ppiankov/annofrag/internal/store"
	"github.com/ppiankov/annofrag/internal/validate"
	"github.com/spf13/cobra"
)

// storeCmd groups the document store commands
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Keep annotated documents in a local SQLite store",
	Long: `Store keeps annotated documents in a SQLite database so they can be
listed, indexed and rendered later without their original source.

Example:
  annofrag store import doc1.json doc2.yaml --container book
  annofrag store list
  annofrag store index --tag b
  annofrag store render doc1 --format html
  annofrag store rm doc1`,
}

var storeImportCmd = &cobra.Command{
	Use:   "import <source>...",
	Short: "Load documents and save them in the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStoreImport,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored document ids",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Show the annotation index built from the store",
	Args:  cobra.NoArgs,
	RunE:  runStoreIndex,
}

var storeRenderCmd = &cobra.Command{
	Use:   "render <id>",
	Short: "Render a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreRender,
}

var storeRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete stored documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStoreRm,
}

var storeFlagKeys = map[string]string{
	"db": "store.path",
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeImportCmd, storeListCmd, storeIndexCmd, storeRenderCmd, storeRmCmd)

	storeCmd.PersistentFlags().String("db", "", "SQLite database path (default from config)")

	addRenderFlags(storeImportCmd.Flags())
	storeImportCmd.Flags().String("container", "default", "container the documents belong to")
	addRenderFlags(storeRenderCmd.Flags())
	storeIndexCmd.Flags().String("tag", "", "only show annotations with this tag")
}

// openStore opens the store named by the merged configuration of cmd
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd, storeFlagKeys)
	if err != nil {
		return nil, err
	}
	return store.Open(cmd.Context(), cfg.Store.Path)
}

func runStoreImport(cmd *cobra.Command, args []string) (err error) {
	p, cfg, err := newPipeline(cmd, storeFlagKeys)
	if err != nil {
		return err
	}
	p.SetStdin(cmd.InOrStdin())
	container, _ := cmd.Flags().GetString("container")

	st, err := store.Open(cmd.Context(), cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, source := range args {
		doc, err := p.LoadDocument(cmd.Context(), source)
		if err != nil {
			return fmt.Errorf("load %s: %w", source, err)
		}
		doc, issues, err := p.Prepare(doc)
		if err != nil {
			return fmt.Errorf("import %s: %w", source, err)
		}
		if rejected := validate.Rejected(issues); len(rejected) > 0 {
			return fmt.Errorf("import %s: %s (use --clamp to repair)", source, rejected[0].Message)
		}
		if err := st.PutDocument(cmd.Context(), doc, container); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%d ranges)\n", source, doc.ID, len(doc.Ranges))
	}
	return nil
}

func runStoreList(cmd *cobra.Command, args []string) (err error) {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ids, err := st.DocumentIDs(cmd.Context())
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runStoreIndex(cmd *cobra.Command, args []string) (err error) {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	idx := index.New()
	n, err := st.LoadIndex(cmd.Context(), idx)
	if err != nil {
		return err
	}
	tag, _ := cmd.Flags().GetString("tag")

	out := cmd.OutOrStdout()
	fmt.Fprintf(os.Stderr, "Indexed %d annotations\n\n", n)
	for _, container := range idx.Containers() {
		anns := idx.Get(container, tag)
		if len(anns) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s\n", container)
		for _, a := range anns {
			fmt.Fprintf(out, "  %-20s %-10s [%d,%d) %s\n", a.ID, a.Tag, a.Start, a.End, a.Path())
		}
	}
	return nil
}

func runStoreRender(cmd *cobra.Command, args []string) (err error) {
	p, cfg, err := newPipeline(cmd, storeFlagKeys)
	if err != nil {
		return err
	}

	st, err := store.Open(cmd.Context(), cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	doc, err := st.Document(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	result, err := p.RenderDocument(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("render %s: %w", args[0], err)
	}

	output, err := pipeline.ReportOutput(result.Report)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	if !strings.HasSuffix(output, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if cfg.Output.Verbose {
		pipeline.NewWriter(os.Stderr).PrintSummary(result.Report)
	}
	return nil
}

func runStoreRm(cmd *cobra.Command, args []string) (err error) {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, id := range args {
		if err := st.DeleteDocument(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Deleted %s\n", id)
	}
	return nil
}
