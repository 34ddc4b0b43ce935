package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/api"
	"github.com/jengzang/trailbloom-backend/internal/config"
	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/metrics"
	"github.com/jengzang/trailbloom-backend/internal/provider/inaturalist"
	"github.com/jengzang/trailbloom-backend/internal/repository"
	"github.com/jengzang/trailbloom-backend/internal/service"
)

// App wires configuration, storage and services together
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *database.DB
	Store    *repository.RefreshStore
	Registry *prometheus.Registry

	Controller   *analysis.Controller
	Runner       *analysis.Runner
	TrailCounts  *service.TrailCountService
	Refresh      *service.RefreshService
	TrailImport  *service.TrailImportService
	Observations *service.ObservationIngestService
}

// New opens the database, applies migrations and builds every service
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(ctx, database.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRefreshMetrics(registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	store := repository.NewRefreshStore(db)
	regions := cfg.RegionCodes()

	controller := analysis.NewController(store, regions, analysis.Options{
		WindowDays:         cfg.Refresh.WindowDays,
		CellSize:           cfg.Refresh.CellSizeDeg,
		BufferMeters:       cfg.Refresh.BufferMeters,
		ReadPageSize:       cfg.Refresh.ReadPageSize,
		TrailChunkPageSize: cfg.Refresh.TrailChunkPageSize,
		WriteBatchSize:     cfg.Refresh.WriteBatchSize,
		DeletePageSize:     cfg.Refresh.DeletePageSize,
	}, logger).WithRecorder(recorder)
	runner := analysis.NewRunner(controller, cfg.Refresh.Concurrency, logger)

	counts := service.NewTrailCountService(store, regions, cfg.Cache.TTL)

	places := make(map[string]int64, len(cfg.Regions))
	for _, r := range cfg.Regions {
		places[r.Code] = r.PlaceID
	}
	client := inaturalist.NewClient(inaturalist.Config{
		BaseURL:           cfg.Provider.BaseURL,
		PerPage:           cfg.Provider.PerPage,
		MaxPages:          cfg.Provider.MaxPages,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		TaxonID:           cfg.Provider.TaxonID,
	}, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Store:        store,
		Registry:     registry,
		Controller:   controller,
		Runner:       runner,
		TrailCounts:  counts,
		Refresh:      service.NewRefreshService(runner, counts, logger),
		TrailImport:  service.NewTrailImportService(store, logger),
		Observations: service.NewObservationIngestService(client, store, places, logger),
	}, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.DB.Close()
}

// Serve runs the HTTP API until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	router := api.SetupRouter(api.Deps{
		TrailCounts: a.TrailCounts,
		Refresh:     a.Refresh,
		Gatherer:    a.Registry,
		JWTSecret:   a.Config.Auth.JWTSecret,
		Logger:      a.Logger,
	})
	srv := &http.Server{
		Addr:              a.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Server starting", "addr", a.Config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
