package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/phbpx/leadcapture/handler"
	"github.com/phbpx/leadcapture/intake"
	"github.com/phbpx/leadcapture/pkg/database"
	"github.com/phbpx/leadcapture/postgres"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	log, err := newLog("leads-api")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := run("leads-api", log); err != nil {
		log.Errorw("startup", "err", err)
		os.Exit(1)
	}
}

func run(serverName string, log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := struct {
		Http struct {
			Port            int           `conf:"default:3000,env:PORT"`
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
		DB struct {
			URL            string        `conf:"env:DATABASE_URL,mask"`
			Name           string        `conf:"default:leads"`
			MaxIdleConns   int           `conf:"default:2"`
			MaxOpenConns   int           `conf:"default:10"`
			ConnectTimeout time.Duration `conf:"default:5s"`
		}
		Cors struct {
			AllowedOrigins []string `conf:"default:*"`
		}
		Jaeger struct {
			Enabled     bool    `conf:"default:false"`
			ReporterURI string  `conf:"default:http://localhost:14268/api/traces"`
			ServiceName string  `conf:"default:leads-api"`
			Probability float64 `conf:"default:0.5"`
		}
	}{}

	help, err := conf.Parse("LEAD", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// Database Support

	// The connection is opened by the first request that needs it and the
	// schema is migrated at that point.
	if cfg.DB.URL == "" {
		log.Warnw("startup", "status", "database url not configured, lead routes will answer 503")
	}

	pool, err := database.NewPool(database.Config{
		URL:            cfg.DB.URL,
		Name:           cfg.DB.Name,
		MaxIdleConns:   cfg.DB.MaxIdleConns,
		MaxOpenConns:   cfg.DB.MaxOpenConns,
		ConnectTimeout: cfg.DB.ConnectTimeout,
	}, postgres.Migrate)
	if err != nil {
		return fmt.Errorf("preparing database support: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping database support")
		pool.Close()
	}()

	// =========================================================================
	// Start Tracing Support

	if cfg.Jaeger.Enabled {
		log.Infow("startup", "status", "initializing OT/Jaeger tracing support")

		traceProvider, err := startTracing(
			cfg.Jaeger.ServiceName,
			cfg.Jaeger.ReporterURI,
			cfg.Jaeger.Probability,
		)
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer traceProvider.Shutdown(context.Background())
	}

	// =========================================================================
	// Create router

	log.Infow("startup", "status", "initializing router")

	otelLog := otelzap.New(log.Desugar(), otelzap.WithStackTrace(true)).Sugar()
	leadService := intake.NewService(postgres.NewLeadStore(pool))
	leadHandler := handler.NewLeadHandler(leadService, otelLog)
	healthHandler := handler.NewHealthHandler(pool, otelLog)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Cors.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(handler.Metrics)
	r.Use(otelchi.Middleware(serverName, otelchi.WithChiRoutes(r)))

	leadHandler.Routes(r)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	// =========================================================================
	// Start API Server

	log.Infow("startup", "status", "initializing http server", "port", cfg.Http.Port)

	// The HTTP Server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Http.Port),
		Handler:      r,
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
		IdleTimeout:  cfg.Http.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func newLog(serviceName string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

func startTracing(serviceName, reporterURL string, probability float64) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(reporterURL)))
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(probability))),
		// Always be sure to batch in production.
		tracesdk.WithBatcher(exp,
			tracesdk.WithMaxExportBatchSize(tracesdk.DefaultMaxExportBatchSize),
			tracesdk.WithBatchTimeout(tracesdk.DefaultScheduleDelay*time.Millisecond),
		),
		// Record information about this application in a Resource.
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("exporter", "jaeger"),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
