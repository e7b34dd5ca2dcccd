package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixpack/config"
	"pixpack/credentials"
	"pixpack/failures"
	"pixpack/job"
	"pixpack/logger"
	"pixpack/routes"
	"pixpack/session"
	"pixpack/success"

	"github.com/spf13/cobra"
)

// cleanupInterval is how often expired job records are purged.
const cleanupInterval = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting Pixpack server initialization")

	if config.GetJWTSecret() == "" {
		return errors.New("jwt-secret must be set to accept jobs")
	}
	baseDir := config.GetDirectServeBaseDir()
	if err := ensureDirectories(config.GetDataDir(), baseDir); err != nil {
		return err
	}
	registerCodecs()

	logger.Debug("Initializing credentials database")
	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	defer credentials.CloseDB()

	logger.Debug("Initializing failures database")
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		return fmt.Errorf("failed to initialize failure store: %w", err)
	}
	defer failures.Close()

	logger.Debug("Initializing success database")
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		return fmt.Errorf("failed to initialize success store: %w", err)
	}
	defer success.Close()
	logger.Info("Databases initialized successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupRoutine(ctx, config.GetRetention())

	logger.Info("Starting job worker")
	worker := job.NewWorker(job.Options{MaxEntryBytes: config.GetMaxEntryBytes()})
	worker.Start(ctx)
	sessions := session.NewManager(baseDir)

	routes.Init(worker, sessions)
	mux := http.NewServeMux()
	routes.Register(mux, baseDir)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.GetPort()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Pixpack server starting on port %d", config.GetPort())
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	worker.Stop()
	sessions.AbortAll(errors.New("server shutting down"))
	logger.Info("Pixpack server stopped")
	return serveErr
}

// cleanupRoutine periodically removes success and failure records older than maxAge
func cleanupRoutine(ctx context.Context, maxAge time.Duration) {
	logger.Infof("Cleanup routine started - records older than %v are removed every %v", maxAge, cleanupInterval)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			cleanupOldRecords(maxAge)
		}
	}
}

func cleanupOldRecords(maxAge time.Duration) {
	logger.Info("Running scheduled cleanup of old records")

	if n, err := success.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old success records: %v", err)
	} else {
		logger.Infof("Removed %d old success records", n)
	}

	if n, err := failures.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old failure records: %v", err)
	} else {
		logger.Infof("Removed %d old failure records", n)
	}
}
