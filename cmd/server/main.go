package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/config"
	"github.com/taskmaster-pro/taskmaster/internal/db"
	"github.com/taskmaster-pro/taskmaster/internal/events"
	"github.com/taskmaster-pro/taskmaster/internal/httpserver"
	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/search"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
	"github.com/taskmaster-pro/taskmaster/internal/storage"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	searchSvc, err := search.NewService(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	if err != nil {
		logger.Error("search init failed", "error", err)
		os.Exit(1)
	}
	if searchSvc.Enabled() {
		logger.Info("task search index enabled", "url", cfg.ESURL)
	}

	producer := events.NewProducer(cfg.KafkaBrokers, events.DefaultTopic)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("event producer close failed", "error", err)
		}
	}()

	tokens := &token.Service{
		DB:            gdb,
		JWTSecret:     cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}

	hub := ws.NewHub(logger, originChecker(cfg.AllowedOrigins))

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		Cfg:      cfg,
		Log:      logger,
		DB:       gdb,
		Tokens:   tokens,
		Hub:      hub,
		Store:    store,
		Search:   searchSvc,
		Producer: producer,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		logger.Info("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server start failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

// originChecker mirrors the CORS allow list for websocket upgrades. A bare
// "*" accepts any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
