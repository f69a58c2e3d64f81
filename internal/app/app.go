package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/auth"
	"github.com/hamzaconcepts-eng/MMPS/internal/config"
	"github.com/hamzaconcepts-eng/MMPS/internal/confirm"
	"github.com/hamzaconcepts-eng/MMPS/internal/db"
	"github.com/hamzaconcepts-eng/MMPS/internal/directory"
	"github.com/hamzaconcepts-eng/MMPS/internal/health"
	"github.com/hamzaconcepts-eng/MMPS/internal/kafka"
	"github.com/hamzaconcepts-eng/MMPS/internal/logger"
	"github.com/hamzaconcepts-eng/MMPS/internal/messaging"
	"github.com/hamzaconcepts-eng/MMPS/internal/metrics"
	"github.com/hamzaconcepts-eng/MMPS/internal/middleware"
	"github.com/hamzaconcepts-eng/MMPS/internal/photo"
	"github.com/hamzaconcepts-eng/MMPS/internal/student"
	"github.com/hamzaconcepts-eng/MMPS/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const sweepInterval = time.Minute

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	db            *bun.DB
	sessions      *directory.Sessions
	producer      directory.Producer
	meterProvider *sdkmetric.MeterProvider
	stopSweep     context.CancelFunc
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	ctx := context.Background()

	meterProvider, err := telemetry.InitMeterProvider(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize OTel metrics", "error", err)
	}
	app.meterProvider = meterProvider

	m, err := metrics.NewFromGlobal(ServiceName)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	meter := otel.Meter(ServiceName)
	if err := metrics.RegisterServiceInfo(meter, ServiceName, Version, cfg.Env); err != nil {
		slogLogger.Warn("failed to register service info", "error", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	app.db = database

	if err := db.RunMigrations(ctx, database, student.Models()...); err != nil {
		log.Fatal("failed to run migrations:", err)
	}
	if err := metrics.RegisterPoolStats(meter, database.DB); err != nil {
		slogLogger.Warn("failed to register pool metrics", "error", err)
	}

	app.producer = newProducer(cfg.Events, slogLogger)
	var publisher directory.Publisher
	if app.producer != nil {
		publisher = directory.NewPublisher(app.producer)
	}

	studentRepo := student.NewRepository(database, m)
	app.sessions = directory.NewSessions(studentRepo, slogLogger, directory.Options{
		Debounce:  cfg.Directory.Debounce(),
		Publisher: publisher,
		Metrics:   m,
	}, cfg.Directory.SessionTTL())
	if err := metrics.RegisterActiveSessions(meter, app.sessions.Len); err != nil {
		slogLogger.Warn("failed to register session metrics", "error", err)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	app.stopSweep = stopSweep
	go app.sessions.Run(sweepCtx, sweepInterval)

	gate, err := confirm.New(cfg.Confirm.DeletePassword)
	if err != nil {
		log.Fatalf("failed to initialize delete confirmation: %v", err)
	}

	photoStore, err := photo.NewStore(cfg.Photos.Dir, cfg.Photos.MaxBytes, cfg.Photos.MaxDimension, slogLogger)
	if err != nil {
		log.Fatalf("failed to initialize photo store: %v", err)
	}

	// Apply CORS middleware globally
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler(database)
	healthHandler.RegisterRoutes(app.router)

	directoryHandler := directory.NewHandler(app.sessions, gate, photoStore, slogLogger, m)
	photoHandler := photo.NewHandler(photoStore, slogLogger, m)

	app.router.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(auth.Middleware(auth.NewVerifier(cfg.Auth.JWTSecret), slogLogger))
		} else {
			slogLogger.Warn("authentication disabled, /api is open")
		}
		directoryHandler.RegisterRoutes(r)
		photoHandler.RegisterRoutes(r)
	})

	slogLogger.Info("application initialized successfully")

	return app
}

// newProducer connects the configured event transport. Events are optional:
// a connection failure is logged and the directory runs without them.
func newProducer(cfg config.EventsConfig, logger *slog.Logger) directory.Producer {
	switch cfg.Driver {
	case "nats":
		p, err := messaging.NewProducer(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Warn("failed to initialize NATS producer", "error", err)
			return nil
		}
		return p
	case "kafka":
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Warn("failed to initialize kafka producer", "error", err)
			return nil
		}
		return p
	case "", "none":
		logger.Info("student events disabled")
		return nil
	default:
		logger.Warn("unknown events driver, student events disabled", "driver", cfg.Driver)
		return nil
	}
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}

	a.stopSweep()
	a.sessions.CloseAll()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	errs = append(errs, telemetry.Shutdown(ctx, a.meterProvider, a.logger))
	db.Close(a.db)

	return errors.Join(errs...)
}
