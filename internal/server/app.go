// Package server wires the content admin server together: configuration,
// logging, the PostgreSQL pool and migrations, the object store, the
// document lifecycle managers and the HTTP API. It also owns graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/contentkeeper/internal/logging"
	"github.com/dmitrijs2005/contentkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/contentkeeper/internal/server/config"
	"github.com/dmitrijs2005/contentkeeper/internal/server/httpserver"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/contentkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contentkeeper/internal/server/taxonomy"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newBlobStore   = func(ctx context.Context, c *config.Config) (lifecycle.BlobStore, error) {
		return blobstore.New(ctx, c)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpserver.Server
}

// NewApp connects to the database, applies migrations and builds the
// HTTP server. The caller must Close the returned App.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	opts := lifecycle.Options{
		CleanupTimeout:    c.CleanupTimeout,
		UploadConcurrency: c.UploadConcurrency,
	}
	articles := lifecycle.NewManager(kinds.Articles(c.PlaceholderURL), db, rm, blobs, logger, opts)
	careers := lifecycle.NewManager(kinds.Careers(), db, rm, blobs, logger, opts)
	terms := taxonomy.NewService(db, rm, logger)

	handler := httpserver.NewHandler(logger, db, terms, c.MaxUploadSize, articles, careers)
	srv := httpserver.NewServer(c.EndpointAddrHTTP, handler.Routes(), logger, c.RequestTimeout)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}
