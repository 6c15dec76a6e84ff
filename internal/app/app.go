// Package app wires configuration, logging, storage and the token
// service together, and runs the periodic expired-token sweep.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nichepulse/tokenvault/internal/config"
	"github.com/nichepulse/tokenvault/internal/logging"
	"github.com/nichepulse/tokenvault/internal/repositories/manager"
	"github.com/nichepulse/tokenvault/internal/token"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager *manager.PostgresManager
	service *token.Service
}

// NewApp builds the application graph. It fails fast on configuration
// errors: in production a missing signing secret means the process must
// not come up.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	level := slog.LevelInfo
	if !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	synthesized, err := cfg.EnsureSecrets(token.MinSecretLength)
	if err != nil {
		return nil, err
	}
	for _, name := range synthesized {
		logger.Warn(ctx, "signing secret synthesized for local use; issued tokens will not survive a restart", "secret", name)
	}

	signer, err := token.NewSigner(cfg.AccessSecret, cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	m, err := manager.NewPostgresManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	service := token.NewService(signer, m.Tokens(), logger,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	return &App{config: cfg, logger: logger, manager: m, service: service}, nil
}

// Service exposes the token lifecycle service to embedding callers
// (auth middleware, login/logout handlers).
func (a *App) Service() *token.Service {
	return a.service
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes the sweep loop until the context is cancelled or a
// termination signal arrives. One sweep runs immediately on startup so a
// crashed sweeper catches up as soon as it restarts.
func (a *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.initSignalHandler(cancelFunc)

	a.logger.Info(ctx, "sweeper started", "interval", a.config.SweepInterval.String())

	ticker := time.NewTicker(a.config.SweepInterval)
	defer ticker.Stop()

	a.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info(ctx, "sweeper stopping")
			return a.manager.Close()
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	runID := uuid.NewString()
	started := time.Now()

	n, err := a.service.CleanupExpiredTokens(ctx)
	if err != nil {
		a.logger.Error(ctx, "sweep failed", "run_id", runID, "error", err)
		return
	}
	a.logger.Info(ctx, "sweep finished",
		"run_id", runID, "revoked", n, "elapsed", time.Since(started).String())
}
