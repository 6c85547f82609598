// Package app assembles the registry from configuration: storage backend,
// audit fan-out, services, and the HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "credreg/internal/auth/handler"
	authservice "credreg/internal/auth/service"
	"credreg/internal/auth/store/nonce"
	credentialhandler "credreg/internal/credential/handler"
	credentialmetrics "credreg/internal/credential/metrics"
	credentialservice "credreg/internal/credential/service"
	credentialstore "credreg/internal/credential/store"
	identityhandler "credreg/internal/identity/handler"
	identitymetrics "credreg/internal/identity/metrics"
	identityservice "credreg/internal/identity/service"
	identitystore "credreg/internal/identity/store"
	jwttoken "credreg/internal/jwt_token"
	"credreg/internal/platform/config"
	"credreg/internal/platform/database"
	"credreg/internal/platform/health"
	"credreg/internal/platform/kafka"
	"credreg/internal/platform/metrics"
	"credreg/internal/platform/redis"
	"credreg/internal/policy"
	"credreg/internal/query"
	queryhandler "credreg/internal/query/handler"
	querymetrics "credreg/internal/query/metrics"
	ratelimitmetrics "credreg/internal/ratelimit/metrics"
	ratelimitmw "credreg/internal/ratelimit/middleware"
	"credreg/internal/ratelimit/models"
	"credreg/internal/ratelimit/store/bucket"
	httptransport "credreg/internal/transport/http"
	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
	auditkafka "credreg/pkg/platform/audit/kafka"
	"credreg/pkg/platform/audit/publisher"
	auditmemory "credreg/pkg/platform/audit/store/memory"
	auditsql "credreg/pkg/platform/audit/store/sql"
	"credreg/pkg/platform/middleware/auth"
	"credreg/pkg/platform/tx"
)

const Version = "0.1.0"

type auditStore interface {
	audit.Store
	audit.Reader
}

// stores groups the backend-specific persistence.
type stores struct {
	users   identityservice.UserStore
	issuers credentialservice.IssuerStore
	records credentialservice.RecordStore
	audit   auditStore
	runner  tx.Runner
	db      *database.DB
}

func openStores(ctx context.Context, cfg config.Storage) (*stores, error) {
	var (
		db  *database.DB
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		return &stores{
			users:   identitystore.NewInMemoryUserStore(),
			issuers: credentialstore.NewInMemoryIssuerStore(),
			records: credentialstore.NewInMemoryRecordStore(),
			audit:   auditmemory.NewInMemoryStore(),
			runner:  tx.NewMemoryRunner(0),
		}, nil
	case config.BackendSQLite:
		db, err = database.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		db, err = database.OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		users:   identitystore.NewSQLUserStore(db),
		issuers: credentialstore.NewSQLIssuerStore(db),
		records: credentialstore.NewSQLRecordStore(db),
		audit:   auditsql.New(db),
		runner:  db,
		db:      db,
	}, nil
}

// App is a fully wired registry. Close releases the backends in reverse
// order of acquisition.
type App struct {
	Handler http.Handler
	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires every component from cfg. On error, anything already opened is closed.
func Build(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)

	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if st.db != nil {
		a.closers = append(a.closers, func() { _ = st.db.Close() })
	}
	log.Info("storage ready", "backend", cfg.Storage.Backend)

	checks, err := health.New(Version)
	if err != nil {
		return nil, fmt.Errorf("health registry: %w", err)
	}
	if st.db != nil {
		if err := checks.Register("database", st.db); err != nil {
			return nil, err
		}
	}

	publisherOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	}
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if kc != nil {
		a.closers = append(a.closers, kc.Close)
		if err := kc.EnsureTopic(ctx, cfg.Kafka.AuditTopic); err != nil {
			return nil, err
		}
		if err := checks.Register("kafka", kc); err != nil {
			return nil, err
		}
		publisherOpts = append(publisherOpts, publisher.WithSink(auditkafka.NewSink(kc, cfg.Kafka.AuditTopic)))
		log.Info("audit sink enabled", "topic", cfg.Kafka.AuditTopic)
	}
	auditPublisher := publisher.NewPublisher(st.audit, publisherOpts...)
	a.closers = append(a.closers, auditPublisher.Close)

	resolver := identityservice.NewActorResolver(st.users)
	gate := policy.NewGate(resolver, nil, policy.WithObserver(func(op policy.Operation, allowed bool) {
		httpMetrics.ObserveAuthz(string(op), allowed)
	}))

	registry := identityservice.New(st.users, gate, st.runner,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(identitymetrics.New(reg)),
	)
	credentials := credentialservice.New(st.issuers, st.records, resolver, gate, st.runner,
		credentialservice.WithLogger(log),
		credentialservice.WithAuditPublisher(auditPublisher),
		credentialservice.WithMetrics(credentialmetrics.New(reg)),
	)
	gate.SetIssuerDirectory(credentials)

	queries := query.New(registry, credentials, gate,
		query.WithLogger(log),
		query.WithMetrics(querymetrics.New(reg)),
		query.WithAuditReader(st.audit),
	)

	if cfg.BootstrapAdmin != "" {
		admin, err := id.ParsePrincipal(cfg.BootstrapAdmin)
		if err != nil {
			return nil, fmt.Errorf("BOOTSTRAP_ADMIN: %w", err)
		}
		if err := registry.Bootstrap(ctx, admin, cfg.BootstrapAdminName); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		log.Info("bootstrap admin ready", "principal", admin)
	}

	var (
		challenges authservice.NonceStore  = nonce.NewInMemoryStore()
		buckets    ratelimitmw.BucketStore = bucket.NewInMemoryBucketStore()
	)
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		challenges = nonce.NewRedisStore(rc.Client)
		buckets = bucket.NewRedisBucketStore(rc.Client)
		if err := checks.Register("redis", rc); err != nil {
			return nil, err
		}
	}
	limiter := ratelimitmw.New(buckets, log, ratelimitmw.WithMetrics(ratelimitmetrics.New(reg)))

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	login := authservice.New(challenges, jwt, resolver, authservice.Config{
		TokenTTL:     cfg.Auth.TokenTTL,
		ChallengeTTL: cfg.Auth.ChallengeTTL,
	}, authservice.WithLogger(log), authservice.WithAuditPublisher(auditPublisher))

	if cfg.Auth.TrustPrincipalHeader {
		log.Warn("X-Principal header trust is enabled")
	}
	a.Handler = httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Health:         checks.Handler(),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AuthOptions:    auth.Options{TrustPrincipalHeader: cfg.Auth.TrustPrincipalHeader},
		CORSOrigins:    cfg.CORSAllowedOrigins,
		Public:         []httptransport.Registrar{authhandler.New(login, log)},
		PublicMiddleware: []func(http.Handler) http.Handler{
			limiter.RateLimit(models.ClassAuth, ratelimitmw.Limit{Requests: cfg.AuthRateLimit, Window: time.Minute}),
		},
		Protected: []httptransport.Registrar{
			identityhandler.New(registry, log),
			credentialhandler.New(credentials, log),
			queryhandler.New(queries, log),
		},
	})
	return a, nil
}
