package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/0xlemi/tunetrace/internal/api"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/0xlemi/tunetrace/internal/session"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [FILE...]",
	Short: "Serve tracks and aligned windows over HTTP",
	Long: `Starts the HTTP API. Files given as arguments are analysed and loaded
before the server starts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := logging.WithFields(logging.Fields{"addr": cfg.Server.Addr})
		sess := session.New(cfg, logger)
		if len(args) > 0 {
			sess.Import(ctx, args)
		}
		return api.NewServer(sess, cfg.Server, logger).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
