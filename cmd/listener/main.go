package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"stockwatch/internal/config"
	"stockwatch/internal/logger"
	"stockwatch/internal/models"
	"stockwatch/internal/notify"
)

func main() {
	cfgPath := os.Getenv("SW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	bus := notify.NewBus(cfg.Notify.Redis, logger)
	if !bus.Enabled() {
		logger.Fatal("listener requires a redis host")
	}

	registry := notify.NewRegistry(logger)
	registry.Register(models.ChannelTelegram, notify.NewTelegramChannel(cfg.Notify.Telegram.BotToken, logger))
	registry.Register(models.ChannelEmail, notify.NewEmailChannel(cfg.Notify.SMTP, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener := &notify.Listener{
		Bus:      bus,
		Registry: registry,
		Logger:   logger,
	}
	logger.Info("notification listener starting", zap.Strings("channels", registry.Names()))
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("listener stopped", zap.Error(err))
	}
	logger.Info("listener shut down")
}
