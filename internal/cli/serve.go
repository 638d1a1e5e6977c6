package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/annofrag/internal/logging"
	"github.com/ppiankov/annofrag/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fragmenter over HTTP and WebSocket",
	Long: `Serve starts an HTTP server:
- POST /v1/render       render a JSON document (?format=markup|html|events)
- GET  /v1/stream       WebSocket; send one document, receive its events
- GET  /healthz         liveness probe

Example:
  annofrag serve
  annofrag serve --addr :8088 --clamp`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addRenderFlags(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().Int64("max-body", 0, "maximum request body in bytes (default from config)")
}

var serveFlagKeys = map[string]string{
	"addr":     "server.addr",
	"max-body": "server.max_body_bytes",
}

func runServe(cmd *cobra.Command, args []string) error {
	p, cfg, err := newPipeline(cmd, serveFlagKeys)
	if err != nil {
		return err
	}

	srv := server.New(p, cfg.Server, logging.L(cmd.Context()))
	fmt.Fprintf(os.Stderr, "🌐 Listening on http://%s\n", cfg.Server.Addr)
	return srv.ListenAndServe(cmd.Context(), cfg.Server.Addr)
}
