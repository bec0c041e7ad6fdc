package commands

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/api"
	"github.com/spherical/redact-edge/internal/batch"
	"github.com/spherical/redact-edge/internal/preview"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preview, selection and batch API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := appCfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	opts := batch.Options{
		ExportDPI:   appCfg.Render.ExportDPI,
		JPEGQuality: appCfg.Render.JPEGQuality,
	}
	var history api.History
	if j != nil {
		defer j.Close()
		opts.Sink = j
		history = j
	}

	engine, raster := newEngines()
	runner := batch.NewRunner(engine, raster, logger, opts)
	queue := batch.NewQueue(runner, appCfg.Pipeline.QueueSize, logger)
	queue.Start(context.Background())
	defer queue.Stop()

	server := api.NewServer(preview.NewRenderer(engine, raster, appCfg.Render.PreviewDPI, logger), queue, history, logger)
	defer server.Close()

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(server, api.Config{RequestTimeout: appCfg.Server.WriteTimeout}),
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()
	ui.Success("Listening on http://%s", addr)

	ctx, cancel := signalContext("Interrupt received, shutting down...")
	defer cancel()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), appCfg.Server.GracefulShutdown)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}
	logger.Info().Msg("Server stopped")
	return nil
}
