package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/server"
	"github.com/jackzampolin/redline/internal/svcctx"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Redline server",
	Long: `Start the Redline HTTP server.

The server loads providers from config and watches the config file:
provider, classifier, and prompt changes apply without a restart.
On shutdown (Ctrl+C or SIGTERM) background runs are cancelled.

The server provides:
  - /health          - Basic server health check
  - /ready           - Readiness check (at least one provider registered)
  - /api/corrections - Start a correction run

Examples:
  redline serve                    # Start on the configured address
  redline serve --port 3000        # Start on custom port
  redline serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger(os.Stdout)
		if err != nil {
			return err
		}

		h, cfgMgr, err := loadConfig(logger)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		services, err := svcctx.New(ctx, svcctx.Options{
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer services.Close()

		cfg := services.Config()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:     host,
			Port:     port,
			Services: services,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
