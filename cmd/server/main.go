package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mdaccula/postcontrol/internal/api"
	"github.com/mdaccula/postcontrol/internal/app"
	"github.com/mdaccula/postcontrol/internal/app/maintenance"
	iauth "github.com/mdaccula/postcontrol/internal/auth"
	"github.com/mdaccula/postcontrol/internal/cache"
	"github.com/mdaccula/postcontrol/internal/database"
	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/services"
	"github.com/mdaccula/postcontrol/pkg/logger"
	"github.com/mdaccula/postcontrol/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("postcontrol-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var dbStore *cache.DatabaseStore
	if cfg.Cache.Database.Enabled {
		dbStore = cache.NewDatabaseStore(db)
	}

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	directory, err := guests.NewDirectory(db)
	if err != nil {
		return fmt.Errorf("initialise guest directory: %w", err)
	}
	resolver, err := guests.NewResolver(directory,
		guests.WithLogger(logger.WithModule("guests")),
		guests.WithCache(cache.NewMemoryStore(), cfg.Guests.CacheTTL),
	)
	if err != nil {
		return fmt.Errorf("initialise guest resolver: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}
	eventSvc, err := services.NewEventService(db, auditSvc)
	if err != nil {
		return fmt.Errorf("initialise event service: %w", err)
	}

	cleanerOpts := []maintenance.Option{}
	if dbStore != nil {
		cleanerOpts = append(cleanerOpts, maintenance.WithCacheStore(dbStore))
	}
	cleaner := maintenance.NewCleaner(db, eventSvc, auditSvc, cleanerOpts...)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	var rateStore middleware.RateStore
	if dbStore != nil {
		rateStore = middleware.NewDatabaseRateStore(dbStore)
	} else {
		rateStore = middleware.NewMemoryRateStore()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:        db,
		JWT:       jwtService,
		Config:    cfg,
		Resolver:  resolver,
		Mailer:    mailer,
		RateStore: rateStore,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
