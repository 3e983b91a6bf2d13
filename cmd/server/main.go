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

	"golang.org/x/sync/errgroup"

	"healthcert/internal/audit"
	"healthcert/internal/certificate"
	"healthcert/internal/platform/config"
	"healthcert/internal/platform/httpserver"
	"healthcert/internal/platform/logger"
	"healthcert/internal/platform/metrics"
	platformredis "healthcert/internal/platform/redis"
	"healthcert/internal/refcode"
	"healthcert/internal/registry"
	registryhandler "healthcert/internal/registry/handler"
	"healthcert/internal/scanner"
	"healthcert/internal/scanner/extractor"
	scanhandler "healthcert/internal/scanner/handler"
	httptransport "healthcert/internal/transport/http"
	"healthcert/internal/verification"
	verifyhandler "healthcert/internal/verification/handler"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Audit trail: services emit through the publisher, the worker persists,
	// and Kafka (when configured) mirrors for downstream consumers.
	auditStore := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(256, log)
	worker := audit.NewWorker(auditStore, publisher.Inbox(), log)
	mirror, err := audit.NewKafkaMirror(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Error("kafka mirror unavailable", "error", err.Error())
		os.Exit(1)
	}
	if mirror != nil {
		worker = worker.WithMirror(mirror)
		defer mirror.Close()
	}

	// Registry persistence: PostgreSQL when configured, in-memory otherwise.
	var (
		store registry.Store
		db    *sql.DB
	)
	if cfg.PostgresURL != "" {
		db, err = registry.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		pg := registry.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("no postgres configured, using in-memory registry")
		store = registry.NewInMemoryStore()
	}

	// Certificate cache: Redis when configured.
	var cache registry.CertificateCache = registry.NoopCache{}
	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		cache = registry.NewRedisCache(redisClient.Client, cfg.CertificateCacheTTL, log)
		defer redisClient.Close()
	}

	registrySvc := registry.New(store,
		registry.WithLogger(log),
		registry.WithCache(cache),
		registry.WithAuditPublisher(publisher),
	)

	extractors := extractor.NewRegistry()
	extractor.RegisterBuiltins(extractors)
	images := scanner.NewImageStore()
	scanSvc := scanner.New(extractors, images,
		scanner.WithLogger(log),
		scanner.WithMetrics(m),
		scanner.WithAuditPublisher(publisher),
		scanner.WithSteps(cfg.ScanSteps),
		scanner.WithTickInterval(cfg.ScanTickInterval),
	)

	refcodes := refcode.NewService()
	ledger := certificate.NewOutcomeLedger()
	issuer := certificate.NewIssuer(
		registrySvc,
		certificate.NewJWTSigner(cfg.SigningKey, cfg.IssuerIdentity),
		refcodes,
		ledger,
		cfg.IssuerIdentity,
		certificate.WithLogger(log),
		certificate.WithMetrics(m),
		certificate.WithAuditPublisher(publisher),
	)
	engine := verification.NewEngine(verification.NewHMACComparator(),
		verification.WithEngineMetrics(m))
	verifySvc := verification.NewService(engine, registrySvc, issuer, ledger,
		verification.WithLogger(log),
		verification.WithMetrics(m),
		verification.WithAuditPublisher(publisher),
	)

	var checkers []httptransport.HealthChecker
	if db != nil {
		checkers = append(checkers, pingChecker{name: "postgres", ping: db.PingContext})
	}
	if redisClient != nil {
		checkers = append(checkers, pingChecker{name: "redis", ping: redisClient.Health})
	}

	router := httptransport.NewRouter(
		httptransport.Config{Logger: log, Metrics: m, Checkers: checkers},
		scanhandler.New(scanSvc, images, log),
		verifyhandler.New(verifySvc, log),
		registryhandler.New(registrySvc, refcodes, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting healthcert server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

// pingChecker adapts a dependency ping into a health check.
type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (c pingChecker) Name() string { return c.name }

func (c pingChecker) Healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.ping(ctx) == nil
}
