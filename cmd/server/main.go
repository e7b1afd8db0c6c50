package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coolmon/pkg/api"
	"coolmon/pkg/config"
	"coolmon/pkg/database"
	"coolmon/pkg/monitor"
	"coolmon/pkg/notify"
	"coolmon/pkg/redfish"
	"coolmon/pkg/scheduler"
	"coolmon/pkg/settings"
	"coolmon/pkg/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load config", "component", "Main", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "component", "Main", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "component", "Main", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	settingsService := settings.NewService(db, cfg)
	alertRepo := database.NewAlertRepository(db)
	notifier := notify.NewNotifier(hub, settingsService, notify.NewEmailSink(), notify.NewTeamsSink())

	clientOpts := redfish.Options{
		Port:      cfg.RedfishPort,
		VerifySSL: cfg.RedfishVerifySSL,
		Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Retries:   cfg.RequestRetryCount,
		Backoff:   time.Duration(cfg.RequestBackoffMs) * time.Millisecond,
	}
	newClient := func(ip, username, password string) monitor.DeviceClient {
		return redfish.NewClient(ip, username, password, clientOpts)
	}

	monitorService := monitor.NewService(db, settingsService, alertRepo, notifier, newClient)

	sched := scheduler.New(monitorService, settingsService,
		cfg.PollIntervalSeconds, cfg.PollWorkerConcurrency, cfg.PollQueueSize)
	go sched.Run(ctx)

	router := api.NewRouter(api.Deps{
		DB:       db,
		Alerts:   alertRepo,
		Settings: settingsService,
		Hub:      hub,
		Trigger:  sched,
		Tester:   monitorService,
	})

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}

	go func() {
		slog.Info("Starting HTTP server", "component", "Main", "address", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "component", "Main", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down", "component", "Main")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "component", "Main", "error", err)
	}
}
