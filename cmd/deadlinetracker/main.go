package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deadline-tracker/internal/bot"
	"deadline-tracker/internal/config"
	"deadline-tracker/internal/httpapi"
	"deadline-tracker/internal/metrics"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	level, _ := cfg.Level()
	loc, _ := cfg.Location()

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logging, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	db, err := repository.NewDB(cfg.DatabaseURL, logging)
	if err != nil {
		logging.Fatal("open database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logging.Fatal("database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	m := metrics.New()
	userRepo := repository.NewUserRepository(db)
	workspaces := service.NewWorkspaceService(
		userRepo,
		repository.NewLinkRepository(db),
		repository.NewNotificationRepository(db),
		logging.Named("workspace"),
		service.WithDemoData(cfg.SeedDemoData),
		service.WithMetrics(m),
	)
	m.Observe(workspaces.Snapshot)
	reminders := service.NewReminderService(workspaces, m, logging.Named("reminders"))

	if err := workspaces.LoadTelegramUsers(ctx); err != nil {
		logging.Fatal("load bot users", zap.Error(err))
	}

	var telegramBot *bot.Bot
	if cfg.BotEnabled() {
		telegramBot, err = bot.New(cfg.TelegramToken, userRepo, workspaces, reminders, bot.Options{
			Location:         loc,
			CountdownRefresh: cfg.CountdownRefresh,
			CountdownWatch:   cfg.CountdownWatch,
		}, logging.Named("bot"))
		if err != nil {
			logging.Fatal("start bot", zap.Error(err))
		}
	}

	scheduler := service.NewSchedulerService(loc, logging.Named("scheduler"))
	if _, err := scheduler.ScheduleInterval(cfg.ReminderScanInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		due, err := reminders.ScanDue(jobCtx, workspaces.Now())
		if err != nil {
			logging.Error("reminder scan", zap.Error(err))
		}
		if telegramBot != nil && len(due) > 0 {
			telegramBot.DeliverReminders(jobCtx, due)
		}
	}); err != nil {
		logging.Fatal("schedule reminder scan", zap.Error(err))
	}
	if telegramBot != nil {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("daily digest", zap.Error(err))
			}
		}); err != nil {
			logging.Fatal("schedule digest", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if telegramBot != nil {
		g.Go(func() error {
			return telegramBot.Start(gctx)
		})
	}
	if cfg.HTTPEnabled() {
		server := httpapi.New(httpapi.Deps{
			Users:      userRepo,
			Workspaces: workspaces,
			Metrics:    m,
			Ping:       sqlDB.PingContext,
		}, httpapi.Options{
			Location:         loc,
			CountdownRefresh: cfg.CountdownRefresh,
		}, logging.Named("http"))

		g.Go(func() error {
			return server.Listen(cfg.HTTPAddr)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logging.Info("deadline tracker started",
		zap.Bool("bot", telegramBot != nil),
		zap.String("http", cfg.HTTPAddr),
		zap.String("timezone", loc.String()),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("stopped with error", zap.Error(err))
	}
	logging.Info("shutdown complete")
}
