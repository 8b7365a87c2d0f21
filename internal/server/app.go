// Package server assembles the auth service: storage, token issuer, session
// manager, mail delivery and the HTTP surface, and runs it until a shutdown
// signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/cryptox"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/config"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/httpapi"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/mailer"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/services"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
)

// Key derivation salts. Each purpose gets its own key from the one secret.
var (
	saltCookieHash  = []byte("cryptofolio/cookie-hash")
	saltCookieBlock = []byte("cryptofolio/cookie-block")
	saltTOTP        = []byte("cryptofolio/totp")
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	secret := []byte(cfg.SecretKey)
	box, err := cryptox.NewBox(cryptox.DeriveKey(secret, saltTOTP))
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("totp key: %w", err)
	}

	issuer := tokens.NewIssuer(store, secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	svc := services.NewAuthService(store, issuer, sender, box, services.PolicyFromConfig(cfg), logger)

	cookies := httpapi.NewRefreshCookie(
		cryptox.DeriveKey(secret, saltCookieHash),
		cryptox.DeriveKey(secret, saltCookieBlock),
		cfg.CookieSecure, cfg.RefreshTokenTTL)

	hs := httpapi.NewServer(cfg.HTTPAddr, logger, svc, cookies, httpapi.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ShutdownTimeout:    cfg.ShutdownTimeout,
	})

	return &App{config: cfg, logger: logger, db: db, http: hs}, nil
}

// openStore picks Postgres when a DSN is configured and the in-memory store
// otherwise. The returned *sql.DB is nil for the memory store.
func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (repomanager.Store, *sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured, using in-memory store")
		return repomanager.NewMemoryStore(), nil, nil
	}

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	store := repomanager.NewPostgresStore(db)
	if err := store.RunMigrations(ctx); err != nil {
		closeDB(db)
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return store, db, nil
}

func newSender(ctx context.Context, cfg *config.Config, logger logging.Logger) (mailer.Sender, error) {
	switch cfg.Mailer {
	case "s3":
		outbox, err := mailer.NewS3OutboxFromOptions(ctx, mailer.S3Options{
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 outbox: %w", err)
		}
		return outbox, nil
	default:
		return mailer.NewLogSender(logger), nil
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	closeDB(app.db)
	app.logger.Info(ctx, "App stopped")
}
