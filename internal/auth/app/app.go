// Package app wires the authorization server together: configuration,
// stores, services, HTTP surface, and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/audit"
	authhttp "github.com/Dodge100/FairArena-sub008/internal/auth/http"
	kvredis "github.com/Dodge100/FairArena-sub008/internal/auth/kv/drivers/redis"
	"github.com/Dodge100/FairArena-sub008/internal/auth/service"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store/drivers/sqlite"
	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// App is the assembled authorization server.
type App struct {
	cfg    Config
	server *http.Server

	store *sqlite.Store
	codes *kvredis.Store
}

// New builds the full dependency graph. Fails fast on anything that would
// leave the server unable to issue tokens, most importantly a missing
// signing key.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		Service: cfg.ServiceName,
		Version: cfg.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	codes, err := kvredis.New(ctx, kvredis.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: "auth",
	})
	if err != nil {
		return nil, fmt.Errorf("connect flow state store: %w", err)
	}

	auditor := audit.New(logger)

	keys := service.NewKeyManager(st, cfg.BootstrapSigningKey)
	if err := keys.Load(ctx); err != nil {
		// No key anywhere is a configuration error, not a degraded mode.
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	scopes := service.NewScopeService(st, auditor)
	authorize := service.NewAuthorizeService(st, codes, scopes, cfg.AuthorizationCodeTTL)
	device := service.NewDeviceService(st, codes, scopes, auditor, cfg.VerificationURI, cfg.DeviceCodeTTL, cfg.DevicePollInterval)
	tokens := service.NewTokenService(st, codes, keys, device, auditor, service.TokenConfig{
		Issuer:          cfg.Issuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		IDTokenTTL:      cfg.IDTokenTTL,
	})
	verifier := service.NewVerifierService(st, keys, cfg.Issuer)
	clientAuth := service.NewClientAuthenticator(st)

	router := authhttp.NewRouter(cfg.Issuer, cfg.BuildVersion, st, keys.KeySet(), logger)
	router.TokenService = tokens
	router.AuthorizeService = authorize
	router.DeviceService = device
	router.ScopeService = scopes
	router.VerifierService = verifier
	router.ClientAuth = clientAuth
	router.ApplyRoutes()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &App{cfg: cfg, server: server, store: st, codes: codes}, nil
}

// Run serves until ctx is cancelled, then drains connections.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if closeErr := a.codes.Close(); err == nil {
		err = closeErr
	}
	if closeErr := a.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
