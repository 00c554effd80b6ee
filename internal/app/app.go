// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bissquit/statusrelay/api/openapi"
	"github.com/bissquit/statusrelay/internal/catalog"
	catalogmemory "github.com/bissquit/statusrelay/internal/catalog/memory"
	catalogpostgres "github.com/bissquit/statusrelay/internal/catalog/postgres"
	"github.com/bissquit/statusrelay/internal/config"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/incidents"
	incidentsmemory "github.com/bissquit/statusrelay/internal/incidents/memory"
	incidentspostgres "github.com/bissquit/statusrelay/internal/incidents/postgres"
	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
	"github.com/bissquit/statusrelay/internal/pkg/httputil"
	"github.com/bissquit/statusrelay/internal/pkg/metrics"
	"github.com/bissquit/statusrelay/internal/pkg/postgres"
	"github.com/bissquit/statusrelay/internal/realtime"
	"github.com/bissquit/statusrelay/internal/seed"
	"github.com/bissquit/statusrelay/internal/status"
	"github.com/bissquit/statusrelay/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	registry      *realtime.Registry
	transport     *realtime.Transport
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	startedAt     time.Time
}

type repositories struct {
	services  catalog.Repository
	incidents incidents.Repository
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
		startedAt:     time.Now(),
	}

	repos, err := app.openStorage()
	if err != nil {
		metricsCancel()
		return nil, err
	}

	if app.db != nil {
		go app.collectDBMetrics(metricsCtx)
	}

	if cfg.Storage.Seed {
		if err := app.seed(repos); err != nil {
			app.closeDB()
			metricsCancel()
			return nil, fmt.Errorf("seed storage: %w", err)
		}
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(repos),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) openStorage() (repositories, error) {
	if a.config.Storage.Driver != config.StoragePostgres {
		a.logger.Info("using in-memory storage")
		return repositories{
			services:  catalogmemory.NewRepository(),
			incidents: incidentsmemory.NewRepository(),
		}, nil
	}

	if a.config.Database.Migrate {
		if err := postgres.Migrate(a.config.Database.URL); err != nil {
			return repositories{}, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), a.config.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             a.config.Database.URL,
		MaxOpenConns:    a.config.Database.MaxOpenConns,
		MaxIdleConns:    a.config.Database.MaxIdleConns,
		ConnMaxLifetime: a.config.Database.ConnMaxLifetime,
		ConnectAttempts: a.config.Database.ConnectAttempts,
	})
	if err != nil {
		return repositories{}, fmt.Errorf("connect to database: %w", err)
	}

	a.db = db
	a.logger.Info("using postgres storage")
	return repositories{
		services:  catalogpostgres.NewRepository(db),
		incidents: incidentspostgres.NewRepository(db),
	}, nil
}

func (a *App) seed(repos repositories) error {
	var (
		data *seed.File
		err  error
	)
	if a.config.Storage.SeedFile != "" {
		data, err = seed.Load(a.config.Storage.SeedFile)
	} else {
		data, err = seed.Default()
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := seed.Apply(ctx, data, repos.services, repos.incidents, time.Now().UTC())
	if err != nil {
		return err
	}

	if res.Skipped {
		a.logger.Info("seed skipped, storage already has services")
		return nil
	}
	a.logger.Info("storage seeded", "services", res.Services, "incidents", res.Incidents)
	return nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"websocket_path", a.config.Realtime.Path,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. Websocket connections are
// hijacked and not tracked by http.Server, so they are closed explicitly.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()
	a.transport.Shutdown()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.closeDB()

	return errors.Join(errs...)
}

func (a *App) closeDB() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Registry returns the live connection registry.
func (a *App) Registry() *realtime.Registry {
	return a.registry
}

func (a *App) setupRouter(repos repositories) *chi.Mux {
	bus := feed.NewBus()

	catalogService := catalog.NewService(repos.services, bus)
	incidentsService := incidents.NewService(repos.incidents, bus)
	statusService := status.NewService(repos.services, repos.incidents)

	a.registry = realtime.NewRegistry()
	router := realtime.NewRouter(a.registry)
	bus.Subscribe(router.Handle)

	if a.config.Realtime.PublishStatusOnChange {
		bus.Subscribe(status.NewPublisher(statusService, bus).Handle)
	}

	a.transport = realtime.NewTransport(realtime.NewHub(a.registry), realtime.TransportConfig{
		AllowedOrigins: a.config.CORS.AllowedOrigins,
		SendBuffer:     a.config.Realtime.SendBuffer,
		MaxMessageSize: a.config.Realtime.MaxMessageSize,
		WriteTimeout:   a.config.Realtime.WriteTimeout,
		PongTimeout:    a.config.Realtime.PongTimeout,
		PingInterval:   a.config.Realtime.PingInterval,
		RateLimit:      a.config.Realtime.RateLimit,
		RateBurst:      a.config.Realtime.RateBurst,
	}, a.logger)

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Long-lived; must stay outside the request timeout.
	r.Get(a.config.Realtime.Path, a.transport.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.config.Server.RequestTimeout))

		r.Get("/healthz", a.healthzHandler)
		r.Get("/readyz", a.readyzHandler)
		r.Get("/version", a.versionHandler)
		r.Get("/health", a.healthHandler)

		r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/x-yaml")
			if _, err := w.Write(openapi.Spec); err != nil {
				a.logger.Error("failed to write openapi spec", "error", err)
			}
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", a.healthHandler)

			catalog.NewHandler(catalogService).RegisterRoutes(r)
			incidents.NewHandler(incidentsService).RegisterRoutes(r)
			status.NewHandler(statusService).RegisterRoutes(r)
			realtime.NewHandler(a.registry, router, a.config.Realtime.Path).RegisterRoutes(r)
		})
	})

	return r
}

// HealthResponse reports process liveness and uptime in seconds.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(a.startedAt).Seconds(),
	})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
