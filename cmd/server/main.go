package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facebridge/server/config"
	"facebridge/server/internal/api"
	"facebridge/server/internal/data"
	"facebridge/server/internal/license"
	"facebridge/server/internal/notify"
	"facebridge/server/internal/relay"
	"facebridge/server/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Repository
	log.Infof("opening marker store at %s", cfg.DBPath)
	repo, err := data.NewSQLiteRepo(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open marker store: %v", err)
	}
	defer repo.Close()

	// Host notification channel
	notifier := notify.New(log, cfg.NotifyBuffer)
	go func() {
		// The UI layer consumes these in the packaged application;
		// the standalone server just logs them.
		for ev := range notifier.Events() {
			log.Infof("[%s] %s", ev.Name, ev.Payload)
		}
	}()

	// Worker subsystem
	sup := worker.NewSupervisor(log, cfg.WorkerBin, worker.MarkerDetector(cfg.ReadyMarker), cfg.ReadyTimeout)
	client := worker.NewClient(log)
	subsystem := worker.NewSubsystem(log, sup, client)
	defer func() {
		if err := subsystem.Stop(); err != nil {
			log.Warnf("stopping worker on shutdown: %v", err)
		}
	}()

	// Relay subsystem
	gate := relay.NewGate(cfg.MaxConnections)
	dispatcher := relay.NewDispatcher(log, notifier, subsystem, repo)
	relaySrv := relay.NewServer(log, gate, dispatcher, notifier)

	// License checker, on its own goroutine for the process lifetime
	checker := license.NewChecker(log, notifier, cfg.LicenseURL, cfg.LicenseKey, cfg.LicenseInterval)
	go checker.Run(ctx)

	// HTTP engine: relay endpoint + host command surface
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := api.NewHandler(log, subsystem, cfg.WorkerPort)
	handler.SetupRoutes(engine, relaySrv)

	log.Infof("relay listening on ws://%s/ws (max %d connections)", cfg.Addr, cfg.MaxConnections)
	if err := engine.Run(cfg.Addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
