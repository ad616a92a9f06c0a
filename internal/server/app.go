// Package server initializes and runs the account backend: it opens the
// database handle, applies migrations, wires the services and the HTTP
// endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/httpapi"
	"github.com/clipstream/clipstream/internal/server/repositories/repomanager"
	"github.com/clipstream/clipstream/internal/server/services"
	"github.com/clipstream/clipstream/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

// NewApp wires the whole application. The database handle is opened here and
// closed when Run returns: one explicit lifecycle, no connection singletons.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	uploader, err := storage.NewS3Uploader(ctx,
		cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Region,
		cfg.S3BaseEndpoint, cfg.S3Bucket, cfg.S3PublicBaseURL,
	)
	if err != nil {
		return nil, fmt.Errorf("uploader init error: %w", err)
	}

	sessions := services.NewSessionService(db, repos, uploader, logger, cfg)
	profiles := services.NewProfileService(db, repos, uploader, logger, cfg)

	handler := httpapi.NewHandler(sessions, profiles, logger, cfg)

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: httpapi.NewRouter(handler, logger, cfg),
		// Timeouts protect against slow clients holding connections.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

// openDB opens the pgx connection and pings it with fibonacci backoff, so a
// server starting alongside its database does not crash-loop.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until the context is cancelled or a signal arrives, then
// shuts down gracefully and closes the database handle.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		app.logger.Error(ctx, "server error", "error", runErr.Error())
	case <-ctx.Done():
		app.logger.Info(ctx, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	return runErr
}
