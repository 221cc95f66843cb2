package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/tmeadows/scanhub/internal/api"
	"github.com/tmeadows/scanhub/internal/app/relay"
	appScanning "github.com/tmeadows/scanhub/internal/app/scanning"
	"github.com/tmeadows/scanhub/internal/config"
	scanningStore "github.com/tmeadows/scanhub/internal/infra/storage/scanning/postgres"
	"github.com/tmeadows/scanhub/internal/infra/worker"
	"github.com/tmeadows/scanhub/pkg/common/logger"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

var build = "develop"

const serviceType = "scanhub"

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("SCANHUB-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"build":    build,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info(ctx, "startup", "status", "configuration loaded", "env", cfg.Env, "addr", cfg.ListenAddr)

	// -------------------------------------------------------------------------
	// Database
	pool, err := connectDB(ctx, log, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// -------------------------------------------------------------------------
	// Start Tracing Support
	log.Info(ctx, "startup", "status", "initializing tracing support")

	traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      serviceType,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.Telemetry.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
		},
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(ctx)

	tracer := traceProvider.Tracer(serviceType)

	// -------------------------------------------------------------------------
	// Application services
	workerClient := worker.NewClient(cfg.Worker, log)

	jobSvc := appScanning.NewScanJobService(
		log,
		tracer,
		scanningStore.NewJobStore(pool, tracer),
		scanningStore.NewScanTargetStore(pool, tracer),
		scanningStore.NewVulnerabilityStore(pool, tracer),
		workerClient,
	)

	relaySvc := relay.NewService(
		log,
		tracer,
		relay.NewSignatureVerifier(cfg.Webhook.Secret, log),
		workerClient,
		workerClient,
		scanningStore.NewWebhookMappingStore(pool, tracer),
	)
	if cfg.Webhook.Secret == "" {
		log.Warn(ctx, "startup", "status", "webhook secret not configured, signature verification disabled")
	}

	// -------------------------------------------------------------------------
	// Start API Service
	log.Info(ctx, "startup", "status", "initializing API support")

	server := api.NewServer(cfg, log, tracer, jobSvc, relaySvc, pool)

	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(serverCtx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// connectDB builds the pgx pool and waits for the database to answer,
// retrying with exponential backoff so the service survives a database that
// comes up after it does.
func connectDB(ctx context.Context, log *logger.Logger, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = 5
	poolCfg.MaxConns = 25
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating db pool: %w", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10), ctx)
	ping := func() error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn(ctx, "database not ready, retrying", "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, bo); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.Info(ctx, "startup", "status", "database connected")
	return pool, nil
}
