package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nightfeed/nightfeed/app/api"
	"github.com/nightfeed/nightfeed/app/cfg"
	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/feed"
	"github.com/nightfeed/nightfeed/app/fetch"
	"github.com/nightfeed/nightfeed/app/provision"
	"github.com/nightfeed/nightfeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting nightfeed server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	profileRepo := database.NewProfileRepository(db)
	itemRepo := database.NewItemRepository(db)

	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second
	fetchers := fetch.NewSelector(
		fetch.NewHTTPClient(appCfg.UserAgent, fetchTimeout),
		fetch.NewBrowserClient(appCfg.UserAgent, fetchTimeout),
	)

	refresher := feed.NewRefresher(profileRepo, itemRepo, fetchers)

	var provisioner tasks.Provisioner
	if appCfg.ProfilesDir != "" {
		provisioner = provision.NewProvisioner(appCfg.ProfilesDir, profileRepo)
		slog.Info("Profile seed directory configured", "dir", appCfg.ProfilesDir)
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(profileRepo, refresher, provisioner)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(profileRepo, itemRepo, refresher)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
