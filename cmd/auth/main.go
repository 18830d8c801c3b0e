package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dodge100/FairArena-sub008/internal/auth/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	slog.Info("auth server listening", "addr", cfg.ListenAddr, "issuer", cfg.Issuer)
	if err := a.Run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
