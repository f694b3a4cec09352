package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "talok/internal/adapters/http_server"
	"talok/internal/adapters/authprovider"
	"talok/internal/adapters/observability"
	redisad "talok/internal/adapters/redis"
	"talok/internal/app"
	"talok/internal/edl"
	"talok/internal/shared"
	"talok/internal/storage/sqlstore"
	"talok/internal/wizard"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DB_DRIVER")
	}
	db, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	log.Info().Str("driver", string(dialect)).Msg("database connection ok")

	store := sqlstore.New(db, dialect,
		sqlstore.WithMaxFallbackRetries(cfg.FallbackRetries),
		sqlstore.WithFallbackObserver(observability.ObserveFallback),
	)

	// redis
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis ping failed; cache and wizard sessions unavailable until it recovers")
	}

	auth, err := authprovider.New(cfg.AuthBase, cfg.AuthKey, cfg.AuthRPS, authprovider.WithCache(cache, cfg.CacheTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth provider client")
	}

	wizCfg, err := loadWizardConfig(cfg.WizardConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("wizard config invalid")
	}

	// services
	opts := []app.Option{app.WithDBTimeout(cfg.DBTimeout)}
	props := app.NewPropertyService(store, cache, cfg.CacheTTL, wizCfg, opts...)
	wiz := app.NewWizardService(wizCfg, redisad.NewWizardStore(cache, 0), props, cfg.AutosaveDebounce,
		func(_ wizard.State, err error) { observability.ObserveAutosave(err) }, opts...)
	defer wiz.Stop()
	previewer := edl.NewPreviewer(cfg.PreviewDebounce, edl.WithObserver(observability.ObservePreview))
	defer previewer.Stop()
	leases := app.NewLeaseService(store, store, opts...)
	invoices := app.NewInvoiceService(store, store, opts...)
	profiles := app.NewProfileService(store, opts...)

	// http
	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Properties:  props,
		Wizard:      wiz,
		Leases:      leases,
		Invoices:    invoices,
		Inspections: app.NewInspectionService(store, store, previewer, opts...),
		Exports:     app.NewExportService(props, leases, invoices),
		Dashboard:   app.NewDashboardService(store, store, store, opts...),
		Profiles:    profiles,
	}, server.Auth(auth, profiles))

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func loadWizardConfig(path string) (*wizard.Config, error) {
	if path == "" {
		return wizard.Default()
	}
	log.Info().Str("path", path).Msg("loading wizard config")
	return wizard.Load(path)
}
