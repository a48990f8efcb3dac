package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"eneatest/internal/api"
	"eneatest/internal/config"
	"eneatest/internal/db"
	"eneatest/internal/logging"
	"eneatest/internal/services"
)

func main() {
	cfg := config.Load()

	log, err := logging.Init(cfg.LogDir)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}

	users := services.NewUserService(store)
	sessions := services.NewSessionService(store, cfg.TokenSecret)
	definitions := services.NewDefinitionService(store)

	handler := api.New(users, sessions, definitions, log).Router(cfg.AllowedOrigins)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

type store interface {
	services.UserStore
	services.SessionStore
	services.DefinitionStore
}

// openStore selects the backend: a SQLite file when configured, otherwise the
// in-memory store seeded with the demo questionnaire.
func openStore(cfg config.Config, log *zap.Logger) (store, error) {
	if cfg.SQLitePath == "" {
		log.Warn("no sqlite path configured, using in-memory demo store")
		mem := db.NewMemoryStore()
		if err := db.SeedDemoDefinition(mem); err != nil {
			return nil, err
		}
		return mem, nil
	}
	conn, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn, cfg.MigrationsDir); err != nil {
		return nil, err
	}
	st, err := db.NewSQLiteStore(conn)
	if err != nil {
		return nil, err
	}
	log.Info("sqlite store ready", zap.String("path", cfg.SQLitePath))
	return st, nil
}
