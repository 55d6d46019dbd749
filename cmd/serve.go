package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github/itish2003/autorag/controller"
	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/services"
	"github/itish2003/autorag/telemetry"
)

const shutdownTimeout = 30 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API exposing /health and the per-workspace upload and ask
endpoints. When WATCH_DIR is set, files dropped into WATCH_DIR/<workspace_id>/
are ingested into that workspace as well.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "override PORT")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, "autorag", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(sctx)
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	watchDone := make(chan struct{})
	if cfg.WatchDir != "" {
		watcher := services.NewFolderWatcher(cfg.WatchDir, a.ingest)
		go func() {
			defer close(watchDone)
			if err := watcher.WatchDirectory(ctx); err != nil {
				logger.Error("folder watcher stopped", "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	port := cfg.Port
	if servePort != "" {
		port = servePort
	}
	router := controller.NewRouter(controller.NewRAGController(a.ingest, a.rag), cfg.CORSOrigins)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-watchDone
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	<-watchDone
	logger.Info("server exited")
	return nil
}
