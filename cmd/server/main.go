package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/database"
	"accounts/internal/database/mongodb"
	"accounts/internal/database/postgres"
	"accounts/internal/mail"
	puser "accounts/internal/platform/user"
	"accounts/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	hasher, err := auth.NewPasswordHasher(cfg.SaltRounds, cfg.HashWorkers)
	if err != nil {
		log.Fatal(err)
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	log.Infow("Credentials configured", "hash_cost", hasher.Cost(), "hash_workers", cfg.HashWorkers, "session_ttl", issuer.TTL())

	dispatcher := newDispatcher(cfg)

	app := server.New(cfg, server.Services{
		Auth: puser.NewAuthService(store, hasher, issuer, dispatcher, puser.AuthOptions{
			MailFrom:               cfg.MailFrom,
			AllowGeneratedPassword: cfg.AllowGeneratedPassword,
			WelcomeAttachments:     cfg.MailWelcomeAttachments,
		}),
		Reset: puser.NewResetWorkflow(store, hasher, dispatcher, puser.ResetOptions{
			PublicURL: cfg.PublicURL,
			MailFrom:  cfg.MailFrom,
			TTL:       cfg.ResetTTL,
		}),
		Users:  puser.NewService(store, hasher),
		Issuer: issuer,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorw("HTTP shutdown failed", "error", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
		log.Errorw("HTTP server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warnw("Pending mail not delivered", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warnw("Closing store failed", "error", err)
	}
}

// openStore picks the backend from the scheme of DATABASE_URL.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		store, err := mongodb.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "postgresql":
		store, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		log.Warn("Using in-memory store, accounts are lost on restart")
		return database.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

func newDispatcher(cfg *config.Config) *mail.Dispatcher {
	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.MailgunEnabled() {
		mailer = mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
	} else {
		log.Warn("Mailgun not configured, mail is logged instead of sent")
	}

	dispatcher := mail.NewDispatcher(mailer, cfg.MailTimeout)
	if storage := cfg.Storage(); storage != nil {
		dispatcher.WithAttachments(storage)
	}
	return dispatcher
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		log.SetLevel(log.LevelTrace)
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn", "warning":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}
}
