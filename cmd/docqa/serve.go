package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/docqa/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		srv := server.New(a.querier, a.ingester, server.Config{
			Port:           port,
			DataDir:        cfg.Server.DataDir,
			MaxUploadMB:    cfg.Server.MaxUploadMB,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			HistoryLimit:   cfg.Session.HistoryLimit,
			Crawl:          a.scraperConfig(""),
			Logger:         log,
		})
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default from config or PORT)")
}
