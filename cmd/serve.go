package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodewee/doc-structurer/pkg/server"
)

var serveAddr string

// serveCmd runs the HTTP service, exposing the same extract/info surface a
// remote backend speaks
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP service",
	Long: `Run a long-lived HTTP service exposing POST /v1/extract (multipart upload),
POST /v1/info and GET /healthz. The wire surface matches what the remote
backend kind consumes, so one doc-structurer instance can serve as another's
remote backend.

Examples:
  doc-structurer serve --addr :8080
  doc-structurer serve --addr 127.0.0.1:9000 --backend embedded:native`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := NewAppHandler()
		if err != nil {
			exitWith(cmd, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(serveAddr, app.logger, app.dispatcher)
		if err := srv.Run(ctx); err != nil {
			exitWith(cmd, err)
		}
		app.logger.Progress("👋", "Server stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
