// Blog serves the blogging platform: posts, subscriptions and the feed that
// ties them together.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	_ "golang.org/x/crypto/x509roots/fallback" // Roots for github and smtp when the image has none

	"github.com/jdholdren/blogfeed/internal/api"
	"github.com/jdholdren/blogfeed/internal/blog"
	"github.com/jdholdren/blogfeed/internal/logger"
	"github.com/jdholdren/blogfeed/internal/migrations"
	"github.com/jdholdren/blogfeed/internal/notify"
	"github.com/jdholdren/blogfeed/internal/sqlite"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type config struct {
	Database string `env:"DATABASE, required"`

	Port               int    `env:"PORT, default=4444"`
	HTTPSCookies       bool   `env:"HTTPS_COOKIES, default=false"`
	GithubClientID     string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	CookieHashKey      string `env:"COOKIE_HASH_KEY, required"`
	CookieBlockKey     string `env:"COOKIE_BLOCK_KEY"`
	DebugEndpoints     bool   `env:"DEBUG_ENDPOINTS, default=false"`
	CorsHeader         string `env:"CORS_HEADER, default=http://localhost:5173"`
	SSORedirectURL     string `env:"SSO_REDIRECT_URL"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	// Notifications
	BaseURL      string `env:"BASE_URL, default=http://localhost:4444"`
	FromEmail    string `env:"FROM_EMAIL, default=noreply@localhost"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT, default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelInfo))

	if err := runServer(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config) error {
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()

	// Wait on the database file to be usable, it may live on a volume that's still mounting
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := retry.Fibonacci(startCtx, 100*time.Millisecond, func(ctx context.Context) error {
		if err := dbx.PingContext(ctx); err != nil {
			slog.Warn("database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return err
	}

	notifier, err := notify.New(notify.Config{
		From:         cfg.FromEmail,
		BaseURL:      cfg.BaseURL,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
	})
	if err != nil {
		return fmt.Errorf("error creating notifier: %w", err)
	}

	svc := blog.NewService(sqlite.New(dbx), notifier)
	srvr := api.NewServer(api.ServerConfig{
		Port:               cfg.Port,
		CookieHashKey:      []byte(cfg.CookieHashKey),
		CookieBlockKey:     []byte(cfg.CookieBlockKey),
		HttpsCookies:       cfg.HTTPSCookies,
		GithubClientID:     cfg.GithubClientID,
		GithubClientSecret: cfg.GithubClientSecret,
		CorsHeader:         cfg.CorsHeader,
		SSORedirectURL:     cfg.SSORedirectURL,
		DebugEndpoints:     cfg.DebugEndpoints,
	}, svc)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("starting server", "port", cfg.Port)
		if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving: %w", err)
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srvr.Shutdown(ctx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	err = g.Run()

	// Let emails for posts that already went out finish sending
	svc.Wait()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shutting down", "signal", sigErr.Signal.String())
		return nil
	}

	return err
}
