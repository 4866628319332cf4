// Command possync runs the point-of-sale offline sync daemon: a local store,
// a replay queue, background triggers and a local API for the UI shell.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aykha18/tajir-optimized-sub001/internal/app"
	"github.com/aykha18/tajir-optimized-sub001/internal/config"
	"github.com/aykha18/tajir-optimized-sub001/internal/logging"
	"github.com/aykha18/tajir-optimized-sub001/internal/server"
)

func main() {
	envFile := flag.String("env", "", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logging.Must(logging.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()
	logging.Init(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, *cfg, baseLogger.Named("app"))
	if err != nil {
		baseLogger.Fatal("failed to initialize offline store", zap.Error(err))
	}
	if err := application.Start(ctx); err != nil {
		baseLogger.Fatal("failed to start sync", zap.Error(err))
	}

	handler := server.NewHandler(application, baseLogger.Named("handlers"))
	router := server.NewRouter(handler, application.Hub(), server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         baseLogger.Named("router"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http server crashed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := application.Shutdown(); err != nil {
		baseLogger.Error("failed to stop sync", zap.Error(err))
	}
}
