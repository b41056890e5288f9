package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warish/internal/jwt_token"
	"warish/internal/platform/config"
	platformmetrics "warish/internal/platform/metrics"
	"warish/internal/platform/middleware"
	"warish/internal/platform/postgres"
	"warish/internal/platform/ratelimit"
	platformredis "warish/internal/platform/redis"
	"warish/internal/warish/adapters/notify"
	"warish/internal/warish/adapters/storage"
	"warish/internal/warish/certificate"
	"warish/internal/warish/handler"
	"warish/internal/warish/lease"
	"warish/internal/warish/metrics"
	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	"warish/internal/warish/service"
	"warish/internal/warish/store"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/audit/publishers/compliance"
	"warish/pkg/platform/audit/publishers/ops"
	auditmemory "warish/pkg/platform/audit/store/memory"
	auditpostgres "warish/pkg/platform/audit/store/postgres"
	"warish/pkg/platform/circuit"
	"warish/pkg/platform/httputil"
	authmw "warish/pkg/platform/middleware/auth"
	request "warish/pkg/platform/middleware/request"
	"warish/pkg/platform/middleware/requesttime"
)

const (
	jwtIssuer   = "warish-auth"
	jwtAudience = "warish"
)

// app owns every long-lived dependency so shutdown can release them in order.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	router http.Handler

	db         *sql.DB
	redis      *platformredis.Client
	kafka      *notify.KafkaNotifier
	dispatcher *notify.Dispatcher
	tracker    *ops.Tracker
}

// newApp picks PostgreSQL, Redis and Kafka when configured and their
// in-process stand-ins otherwise.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	var (
		warishStore service.Store
		txRunner    service.TxRunner
		auditStore  audit.Store
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		warishStore = store.NewPostgres(db)
		txRunner = store.NewPostgresTx(db, cfg.Database.TxTimeout)
		auditStore = auditpostgres.New(db)
		a.logger.InfoContext(ctx, "using postgres stores")
	} else {
		warishStore = store.NewInMemory()
		txRunner = store.NewMemoryTx(cfg.Database.TxTimeout)
		auditStore = auditmemory.NewInMemoryStore()
		a.logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	var (
		issuanceLease ports.Lease     = lease.NewLocal()
		limiterStore  ratelimit.Store = ratelimit.NewMemory()
	)
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.redis = rc
		issuanceLease = lease.NewRedis(rc.Client)
		limiterStore = ratelimit.NewRedis(rc.Client)
	}

	var notifier ports.Notifier = notify.NewLogNotifier(a.logger)
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notify.NewKafka(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		a.kafka = k
		breaker := circuit.New("kafka-notifier", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))
		notifier = notify.NewGuarded(k, notifier, breaker, a.logger)
	}
	a.dispatcher = notify.NewDispatcher(notifier, a.logger, notify.WithDispatcherMetrics(notify.NewMetrics()))

	objects, err := storage.NewFilesystem(cfg.Storage.Dir, cfg.Storage.BaseURL)
	if err != nil {
		return err
	}

	rendererOpts := []certificate.Option{certificate.WithVerifyURL(cfg.Workflow.CertificateVerifyURL)}
	if cfg.Workflow.CertificateAuthority != "" {
		rendererOpts = append(rendererOpts, certificate.WithAuthority(cfg.Workflow.CertificateAuthority))
	}

	a.tracker = ops.New(auditStore, ops.WithLogger(a.logger), ops.WithMetrics(ops.NewMetrics()))
	svc := service.New(warishStore, txRunner, objects, certificate.NewPDFRenderer(rendererOpts...),
		service.WithLogger(a.logger),
		service.WithMetrics(metrics.New()),
		service.WithNotifier(a.dispatcher),
		service.WithLease(issuanceLease, cfg.Redis.LeaseTTL),
		service.WithComplianceAuditor(compliance.New(auditStore,
			compliance.WithLogger(a.logger),
			compliance.WithMetrics(compliance.NewMetrics()),
		)),
		service.WithOpsTracker(a.tracker),
		service.WithAuditReader(auditStore),
		service.WithPolicy(models.Policy{
			MinRejectRemarkLength: cfg.Workflow.RejectRemarkMinLength,
			RenewalWindow:         cfg.Workflow.RenewalWindow,
		}),
		service.WithStorageTimeout(cfg.Storage.Timeout),
		service.WithMaxLineageDepth(cfg.Workflow.LineageMaxDepth),
	)

	jwtService := jwttoken.NewJWTService(cfg.SecretKey, jwtIssuer, jwtAudience)
	requireStaff := authmw.RequireStaff(jwttoken.NewJWTServiceAdapter(jwtService), a.logger)

	limiter := ratelimit.New(limiterStore, a.logger, cfg.RateLimit.Requests, cfg.RateLimit.Window,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimit.NewMetrics()),
	)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recover(a.logger))
	r.Use(middleware.AccessLog(a.logger))
	r.Use(middleware.Instrument(platformmetrics.New()))

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.With(requireStaff).Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Storage.Dir))))
	handler.New(svc, a.logger, requireStaff,
		handler.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		handler.WithPublicLimiter(limiter.Limit),
	).Register(r)

	a.router = r
	return nil
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	var failed bool
	if a.db != nil {
		checks["postgres"] = "ok"
		if err := a.db.PingContext(ctx); err != nil {
			checks["postgres"], failed = err.Error(), true
		}
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Health(ctx); err != nil {
			checks["redis"], failed = err.Error(), true
		}
	}
	status := http.StatusOK
	if failed {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, httputil.Envelope{Success: !failed, Data: checks})
}

// close stops background workers first so their last writes still reach the
// stores, then releases connections.
func (a *app) close(ctx context.Context) {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.tracker != nil {
		_ = a.tracker.Close()
	}
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close(ctx))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.ErrorContext(ctx, "error releasing resources", "error", err)
	}
}
