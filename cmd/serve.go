package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/shuv1824/kisan/internal/config"
	"github.com/shuv1824/kisan/internal/handler"
	"github.com/shuv1824/kisan/internal/history"
	"github.com/shuv1824/kisan/internal/metrics"
	"github.com/shuv1824/kisan/internal/services/catalog"
	"github.com/shuv1824/kisan/internal/services/ml"
	"github.com/shuv1824/kisan/internal/services/risk"
	"github.com/shuv1824/kisan/internal/services/weather"
	"github.com/shuv1824/kisan/internal/types"
	"github.com/shuv1824/kisan/internal/utils/geodata"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cat, err := catalog.Load(cfg.Data.DiseasesFile)
	if err != nil {
		return fmt.Errorf("failed to load disease catalog: %w", err)
	}
	conditions, err := risk.LoadConditions(cfg.Data.ConditionsFile)
	if err != nil {
		return fmt.Errorf("failed to load condition models: %w", err)
	}
	engine := risk.NewEngine(conditions,
		risk.WithPreventionSource(cat),
		risk.WithDefaultHorizon(cfg.Risk.DefaultHorizonDays),
		risk.WithLogger(logger),
	)
	slog.Info("Loaded disease tables", "diseases", cat.Stats().TotalDiseases, "condition_models", engine.ModelCount())

	models, err := ml.LoadOrTrain(cfg.Models.Dir, cfg.Models.TrainIfMissing, trainOptions(cfg.Models), logger)
	if err != nil {
		return fmt.Errorf("failed to load classifiers: %w", err)
	}

	m := metrics.New()
	weatherStatus, imageStatus := models.Status()
	m.SetModelLoaded("weather", weatherStatus == "healthy")
	m.SetModelLoaded("image", imageStatus == "healthy")

	deps := handler.Deps{
		Engine:         engine,
		Catalog:        cat,
		WeatherML:      models.Weather,
		Images:         ml.NewImageAnalyzer(models.Image, logger),
		History:        history.Nop{},
		Metrics:        m,
		Logger:         logger,
		MaxUploadBytes: cfg.Image.MaxUploadBytes,
		ImageLimiter:   rate.NewLimiter(rate.Limit(cfg.Image.RatePerSecond), cfg.Image.Burst),
	}

	if cfg.Weather.Enabled {
		registry, cached, err := setupWeather(ctx, cfg, m, logger)
		if err != nil {
			slog.Warn("Live weather disabled", "error", err)
		} else {
			deps.Districts, deps.Weather = registry, cached
		}
	}

	if cfg.Database.URL != "" {
		db, err := history.Open(cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return err
		}
		defer db.Close()

		store := history.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.History = store
		slog.Info("Prediction history enabled")
	}

	// Initialize router
	r := mux.NewRouter()
	api := handler.New(deps)
	api.Register(r)
	defer api.Wait()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	var h http.Handler = r

	// Recovery (catches panics)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(debug || cfg.Log.Level == "debug"))(h)

	// CORS
	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
	)(h)

	// Logging
	h = handlers.LoggingHandler(os.Stdout, h)

	slog.Info("starting api server")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return startServer(server, cfg.Server.ShutdownTimeout)
}

// setupWeather builds the cached open-meteo client, warms it for the
// configured districts and starts the background refresh.
func setupWeather(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*geodata.Registry, *weather.CachedService, error) {
	registry, err := geodata.Load(cfg.Data.DistrictsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load geodata: %w", err)
	}
	slog.Info("Loaded districts", "count", registry.Len())

	var cache weather.Cache = weather.NewMemoryCache()
	if cfg.Redis.Address != "" {
		client, err := weather.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("Redis unavailable, using in-memory weather cache", "error", err)
		} else {
			cache = weather.NewRedisCache(client)
			go func() {
				<-ctx.Done()
				client.Close()
			}()
		}
	}

	days := min(cfg.Risk.DefaultHorizonDays, weather.MaxForecastDays)
	provider := weather.NewOpenMeteo(cfg.Weather.BaseURL, cfg.Weather.Timeout, logger)
	cached := weather.NewCachedService(provider, cache, cfg.Weather.CacheTTL, days,
		weather.WithObserver(m),
		weather.WithLogger(logger),
	)

	var warm []types.District
	for _, name := range cfg.Weather.WarmDistricts {
		d, err := registry.Lookup(name)
		if err != nil {
			slog.Warn("Skipping warm-up district", "error", err)
			continue
		}
		warm = append(warm, d)
	}

	if len(warm) > 0 {
		// Warm cache on startup (fetch data before serving requests)
		slog.Info("Warming weather cache...", "districts", len(warm))
		warmCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		n := cached.WarmCache(warmCtx, warm)
		cancel()
		slog.Info("Cache warmed", "cached", n, "requested", len(warm))

		cached.StartBackgroundRefresh(ctx, warm)
	}

	return registry, cached, nil
}

func startServer(server *http.Server, shutdownTimeout time.Duration) error {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverError := make(chan error, 1)

	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case err := <-serverError:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		slog.Info("server stopped gracefully")
	}

	return nil
}
