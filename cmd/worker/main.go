package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockwatch/internal/client/dart"
	"stockwatch/internal/client/krx"
	"stockwatch/internal/config"
	"stockwatch/internal/db"
	"stockwatch/internal/handler"
	"stockwatch/internal/logger"
	"stockwatch/internal/notify"
	gormrepository "stockwatch/internal/repository/gorm"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "job" {
		os.Exit(runJob(os.Args[2:]))
	}
	runScheduler()
}

func loadConfig() config.Config {
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
	return cfg
}

func runScheduler() {
	cfg := loadConfig()

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	bus := notify.NewBus(cfg.Notify.Redis, logger)

	sched := scheduler.New(logger, &scheduler.ExecSpawner{}, bus, cfg.Scheduler.ShutdownGrace)
	if cfg.Cron.Enabled {
		jobs := []struct {
			name string
			spec string
		}{
			{scheduler.JobRefreshSymbolMaster, cfg.Cron.RefreshSymbolMaster},
			{scheduler.JobRefreshDailyPrices, cfg.Cron.RefreshDailyPrices},
			{scheduler.JobPollDisclosures, cfg.Cron.PollDisclosures},
			{scheduler.JobEvaluatePriceAlerts, cfg.Cron.EvaluatePriceAlerts},
		}
		for _, j := range jobs {
			if err := sched.Register(j.name, j.spec); err != nil {
				logger.Fatal("job registration failed", zap.String("job", j.name), zap.Error(err))
			}
		}
	} else {
		logger.Warn("cron disabled, jobs run only on manual trigger")
	}
	sched.Start()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	schedHandler := &handler.SchedulerHandler{Scheduler: sched}
	schedHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Shutdown()
}

// runJob is the child-process entrypoint. The scheduler re-executes this
// binary as `worker job <name> [flags]`; each invocation runs one job to
// completion and exits, so job state never leaks across runs.
func runJob(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: worker job <name> [flags]")
		return 2
	}
	name := args[0]

	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	chatID := fs.Int64("chat-id", 0, "chat id for operator feedback")
	startDate := fs.String("start-date", "", "backfill start date (YYYY-MM-DD)")
	endDate := fs.String("end-date", "", "backfill end date (YYYY-MM-DD)")
	symbol := fs.String("symbol", "", "restrict backfill to one symbol")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cfg := loadConfig()

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("job", name))

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Error("db open failed", zap.Error(err))
		return 1
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	bus := notify.NewBus(cfg.Notify.Redis, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	err = dispatchJob(ctx, name, cfg, store, bus, logger, jobArgs{
		chatID:    *chatID,
		startDate: *startDate,
		endDate:   *endDate,
		symbol:    *symbol,
	})
	if err != nil {
		logger.Error("job failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return 1
	}
	logger.Info("job done", zap.Duration("elapsed", time.Since(started)))
	return 0
}

type jobArgs struct {
	chatID    int64
	startDate string
	endDate   string
	symbol    string
}

func dispatchJob(ctx context.Context, name string, cfg config.Config, store *gormrepository.Store, bus *notify.Bus, logger *zap.Logger, args jobArgs) error {
	krxClient := krx.NewClient(
		&http.Client{Timeout: cfg.Krx.Timeout},
		&http.Client{Timeout: cfg.Krx.DownloadTimeout},
		cfg.Krx.BaseURL,
	)
	refData := &service.RefDataService{Repo: store, Feed: krxClient, Logger: logger}

	switch name {
	case scheduler.JobRefreshSymbolMaster:
		n, err := refData.RefreshSymbolMaster(ctx)
		if err != nil {
			return err
		}
		logger.Info("symbol master refreshed", zap.Int("rows", n))
		return nil

	case scheduler.JobRefreshDailyPrices:
		n, err := refData.RefreshDailyPrices(ctx)
		if err != nil {
			return err
		}
		logger.Info("daily prices refreshed", zap.Int("rows", n))
		return nil

	case scheduler.JobHistoricalPrices:
		if args.startDate == "" || args.endDate == "" {
			return fmt.Errorf("historical backfill requires --start-date and --end-date")
		}
		from, err := time.Parse("2006-01-02", args.startDate)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", args.startDate, err)
		}
		to, err := time.Parse("2006-01-02", args.endDate)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", args.endDate, err)
		}
		var only *string
		if args.symbol != "" {
			only = &args.symbol
		}
		n, err := refData.BackfillHistoricalPrices(ctx, from, to, only)
		if err != nil {
			return err
		}
		logger.Info("historical prices backfilled", zap.Int("rows", n))
		return nil

	case scheduler.JobPollDisclosures:
		adminChatID := cfg.Notify.Telegram.AdminChatID
		if args.chatID != 0 {
			adminChatID = args.chatID
		}
		poller := &service.DisclosurePollService{
			Repo:        store,
			Feed:        dart.NewClient(&http.Client{Timeout: cfg.Dart.Timeout}, cfg.Dart.BaseURL, cfg.Dart.APIKey),
			Bus:         bus,
			Logger:      logger,
			AdminChatID: adminChatID,
			WindowDays:  cfg.Dart.WindowDays,
			PageLimit:   cfg.Dart.PageLimit,
			MaxPages:    cfg.Dart.MaxPages,
		}
		result, err := poller.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("disclosure poll done",
			zap.Int("discovered", result.Discovered),
			zap.Int("inserted", result.Inserted),
			zap.Int("notified", result.Notified),
			zap.String("watermark", result.Watermark),
		)
		return nil

	case scheduler.JobEvaluatePriceAlerts:
		eval := &service.AlertEvalService{Repo: store, Bus: bus, Logger: logger}
		result, err := eval.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("alert sweep done",
			zap.Int("alerts", result.Alerts),
			zap.Int("symbols", result.Symbols),
			zap.Int("triggered", result.Triggered),
			zap.Int("notified", result.Notified),
		)
		return nil

	default:
		return fmt.Errorf("unknown job %q", name)
	}
}
