/*
main.go - Application entry point

PURPOSE:
  Wires the lesson payment reconciler: scheduling API client, staff roster,
  notifier, run store, daily scheduler, and the admin HTTP server.

MODES:
  Default     Long-running service: daily scheduler plus admin API.
  -once       Run one reconciliation immediately and exit. Exit code 1 if
              the run failed. Intended for cron-style deployments.

COMMAND-LINE FLAGS:
  -once    Run a single reconciliation and exit
  -port    Admin HTTP port (overrides ADMIN_PORT)
  -db      Run record database path (overrides DATABASE_PATH)

CONFIGURATION:
  Everything else comes from config.yaml / environment variables; see
  config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the scheduler stops (letting an in-flight run finish),
  the HTTP server drains for up to 30s, and the database is closed.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/acuity"
	"github.com/warp/lesson-reconciler/api"
	"github.com/warp/lesson-reconciler/config"
	"github.com/warp/lesson-reconciler/notify"
	"github.com/warp/lesson-reconciler/reconcile"
	"github.com/warp/lesson-reconciler/roster"
	"github.com/warp/lesson-reconciler/store/sqlite"
)

func main() {
	once := flag.Bool("once", false, "run a single reconciliation and exit")
	port := flag.Int("port", 0, "admin HTTP port (overrides ADMIN_PORT)")
	dbPath := flag.String("db", "", "run record database path (overrides DATABASE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.AdminPort = *port
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	staff, err := roster.LoadStaff(cfg.StaffFile)
	if err != nil {
		logger.Fatal("failed to load staff directory", zap.Error(err))
	}
	exempt, err := roster.LoadExempt(cfg.ExemptFile)
	if err != nil {
		logger.Fatal("failed to load exempt list", zap.Error(err))
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open run store", zap.Error(err))
	}
	defer store.Close()

	gateway := acuity.NewClient(acuity.Config{
		BaseURL: cfg.AcuityBaseURL,
		UserID:  cfg.AcuityUserID,
		APIKey:  cfg.AcuityAPIKey,
	}, logger.Named("acuity"))

	var notifier notify.Notifier
	if cfg.DiscordToken != "" && cfg.DiscordAPIURL != "" {
		notifier = notify.NewDiscordNotifier(cfg.DiscordAPIURL, cfg.DiscordToken, logger.Named("discord"))
	} else {
		logger.Warn("no Discord credentials configured, reports go to the log")
		notifier = &notify.ConsoleNotifier{Log: logger.Named("notify")}
	}

	driver := &reconcile.Driver{
		Gateway:  gateway,
		Notifier: notifier,
		Staff:    staff,
		Exempt:   exempt,
		Log:      logger.Named("reconcile"),
	}

	scheduler := api.NewDailyScheduler(driver, store, logger.Named("scheduler"))
	scheduler.RunHour = cfg.RunHour

	if *once {
		if err := scheduler.Execute(context.Background()); err != nil {
			logger.Error("reconciliation failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, scheduler, logger.Named("api"))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AdminPort),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("admin server listening", zap.Int("port", cfg.AdminPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
