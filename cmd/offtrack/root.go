package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/offtrack/offtrack/internal/analytics"
	"github.com/offtrack/offtrack/internal/api"
	"github.com/offtrack/offtrack/internal/config"
	"github.com/offtrack/offtrack/internal/engine"
	"github.com/offtrack/offtrack/internal/spotify"
	"github.com/offtrack/offtrack/internal/store"
	"github.com/offtrack/offtrack/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "offtrack",
	Short: "Offtrack - seed-based music recommendation service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Build the engine and load the first snapshot. A failed load is not
	// fatal: the server starts degraded and reports the failure on ping,
	// so seeding can happen while it runs.
	eng := engine.New(db, cfg.Engine)
	loadErr := eng.Load(ctx)
	if loadErr != nil {
		slog.Warn("initial snapshot load failed, serving degraded", "error", loadErr)
	}

	// 6. Optional integrations
	sp := spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.CoverCache)
	slog.Info("spotify client initialized", "enabled", sp.Enabled())
	an := analytics.NewClient(cfg.Analytics.APIKey, cfg.Analytics.Host)
	slog.Info("analytics client initialized", "enabled", an.Enabled())

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, eng, sp, an, cfg.Auth.APIKey, Version)
	handler.RecordLoadError(loadErr)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Background workers
	var wg sync.WaitGroup
	if interval := time.Duration(cfg.Worker.RefreshInterval); interval > 0 {
		refresh := worker.NewSnapshotRefreshWorker(eng, handler, interval)
		startWorker(ctx, &wg, "snapshot-refresh", refresh.Run)
	}

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Any other error is a real failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
