package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"finance-agent/internal/agent"
	"finance-agent/internal/agent/batch"
	"finance-agent/internal/agent/cache"
	"finance-agent/internal/agent/entity"
	"finance-agent/internal/agent/intent"
	"finance-agent/internal/agent/maintenance"
	"finance-agent/internal/agent/orchestrator"
	"finance-agent/internal/agent/provider"
	"finance-agent/internal/agent/ratelimit"
	"finance-agent/internal/agent/tools"
	"finance-agent/internal/api"
	awsnotify "finance-agent/internal/common/aws"
	"finance-agent/internal/common/config"
	"finance-agent/internal/common/database"
	apperrors "finance-agent/internal/common/errors"
	httpclient "finance-agent/internal/common/http"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/observability"
	"finance-agent/pkg/registry"
)

// connection attempts made against each backing store before build gives up
var (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// application holds everything main starts and stops.
type application struct {
	classifier *intent.Classifier
	limiter    *ratelimit.Limiter
	batches    *batch.Tracker
	scheduler  *maintenance.Scheduler
	api        *api.Server
	closers    []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger, obs *observability.Observability) (*application, error) {
	app := &application{}
	var readiness []func(*api.Server)

	// --- Redis (cache and rate-limit windows) ---
	var rdb *database.RedisClient
	needsRedis := cfg.Agent.Cache.Backend == "redis" || cfg.Agent.RateLimiter.Backend == "redis"
	if cfg.Database.Redis.Enabled || needsRedis {
		err := retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return rdb.Ping(pingCtx)
		}, connectAttempts, connectBackoff, zapLog, "Redis connection")
		if err != nil {
			return nil, apperrors.NewDatabaseConnectionFailedError(err)
		}
		app.closers = append(app.closers, rdb.Close)
		readiness = append(readiness, func(s *api.Server) { s.WithReadinessCheck("redis", rdb.Ping) })
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL (database tools and usage ledger) ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return pg.Ping(pingCtx)
		}, connectAttempts, connectBackoff, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, apperrors.NewDatabaseConnectionFailedError(err)
		}
		app.closers = append(app.closers, pg.Close)
		readiness = append(readiness, func(s *api.Server) { s.WithReadinessCheck("postgres", pg.Ping) })
		if err := pg.EnsureUsageLedger(ctx); err != nil {
			zapLog.Warn("usage ledger unavailable", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Elasticsearch (news tool) ---
	var es *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		readiness = append(readiness, func(s *api.Server) { s.WithReadinessCheck("elasticsearch", es.Ping) })
		indexCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := es.EnsureNewsIndex(indexCtx); err != nil {
			zapLog.Warn("news index check failed", zap.Error(err))
		}
		cancel()
		zapLog.Info("Elasticsearch client created", zap.String("newsIndex", es.NewsIndex))
	}

	// --- Rate limiter ---
	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Agent.RateLimiter.Backend == "redis" {
		limitStore = ratelimit.NewRedisStore(rdb.Client)
	}
	app.limiter = ratelimit.New(limitStore, ratelimit.ClassesFromConfig(cfg.Agent.RateLimits), cfg.Agent.RateLimiter.KeyPrefix, log)

	// --- Response cache ---
	var cacheStore cache.Store = cache.NewMemoryStore()
	if cfg.Agent.Cache.Backend == "redis" {
		cacheStore = cache.NewRedisStore(rdb.Client, cfg.Agent.Cache.KeyPrefix)
	}
	responses := cache.New(cacheStore, log).
		WithComputeTimeout(config.GetDuration(cfg.Server.RequestTimeout))

	// --- Classifier ---
	var remote intent.Remote
	if cfg.Agent.Classifier.RemoteEnabled {
		remote = intent.NewHTTPRemote(cfg.Agent.Classifier)
	}
	app.classifier = intent.New(
		entity.New(cfg.Agent.Classifier.ExtraDenyList...),
		intent.ThresholdsFromConfig(cfg.Agent.Classifier),
		remote,
		log,
	)

	// --- Tools ---
	deps := tools.Deps{}
	if md := cfg.APIs.MarketData; md.BaseURL != "" {
		deps.MarketData = httpclient.NewClient(md.BaseURL, config.GetDuration(md.Timeout),
			httpclient.WithRateLimit(md.RatePerSecond, md.Burst),
			httpclient.WithMaxRetries(md.MaxRetries),
			httpclient.WithHeader("X-API-Key", md.APIKey),
		)
	}
	if pg != nil {
		deps.DB = pg.DB
	}
	if es != nil {
		deps.Search = es.Client
		deps.NewsIndex = es.NewsIndex
	}
	registryTools, err := orchestrator.NewRegistry(tools.Build(cfg, deps, log)...)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(registryTools, orchestrator.Options{
		MaxConcurrent:  cfg.Agent.Orchestrator.MaxConcurrentTools,
		DefaultTimeout: config.GetDuration(cfg.Agent.Orchestrator.DefaultToolTimeout),
	}, log).WithGate(app.limiter).WithObservability(obs)

	if cfg.Agent.Orchestrator.ValidatePayloads {
		catalog, err := registry.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		validator, err := registry.NewPayloadValidator(catalog)
		if err != nil {
			return nil, err
		}
		orch.WithValidator(validator)
	}

	// --- Providers ---
	recorders := provider.MultiRecorder{provider.PrometheusRecorder{}}
	if pg != nil {
		recorders = append(recorders, provider.NewLedgerRecorder(pg.DB, log))
	}
	chain := provider.NewChain(provider.FromConfig(cfg.Providers), cfg.APIs.Synthesis.MaxAttempts, recorders, log).
		WithObservability(obs)

	// --- Service ---
	svc := agent.New(agent.Deps{
		Classifier: app.classifier,
		Limiter:    app.limiter,
		Cache:      responses,
		TTL: cache.TTLPolicy{
			Entity:  config.GetDuration(cfg.Agent.Cache.EntityTTL),
			General: config.GetDuration(cfg.Agent.Cache.GeneralTTL),
		},
		Orchestrator: orch,
		Synthesizer:  chain,
	}, log).WithObservability(obs)

	// --- Batches and notifications ---
	app.batches = batch.NewTracker(svc, batch.Options{
		MaxEntities: cfg.Agent.Batch.MaxEntities,
		Retention:   config.GetDuration(cfg.Agent.Batch.Retention),
		MaxJobs:     cfg.Agent.Batch.MaxJobs,
		LimitClass:  cfg.Agent.Batch.LimitClass,
	}, log).WithGate(app.limiter)

	if notifier, err := buildNotifier(ctx, cfg); err != nil {
		zapLog.Warn("batch notifications disabled", zap.Error(err))
	} else if notifier != nil {
		app.batches.WithNotifier(notifier)
	}

	// --- Maintenance ---
	app.scheduler = maintenance.New(log)
	if err := app.scheduler.RegisterDefaults(cfg.Agent.Maintenance, maintenance.Targets{
		Batches: app.batches,
		Cache:   responses,
		Limiter: app.limiter,
	}); err != nil {
		return nil, err
	}

	// --- API ---
	app.api = api.NewServer(svc, app.batches, responses, log).
		WithRequestTimeout(config.GetDuration(cfg.Server.RequestTimeout))
	for _, register := range readiness {
		register(app.api)
	}

	zapLog.Info("Agent assembled",
		zap.Strings("tools", registryTools.Names()),
		zap.Int("providers", len(cfg.Providers)),
		zap.String("cache", cfg.Agent.Cache.Backend),
		zap.String("rateLimiter", cfg.Agent.RateLimiter.Backend),
	)
	return app, nil
}

// buildNotifier returns nil when no channel is enabled.
func buildNotifier(ctx context.Context, cfg *config.Config) (batch.Notifier, error) {
	n := cfg.Notifications
	if !n.SNS.Enabled && !n.SES.Enabled {
		return nil, nil
	}
	awsCfg, err := awsnotify.LoadConfig(ctx, n.AWS.Region)
	if err != nil {
		return nil, err
	}

	var multi awsnotify.MultiNotifier
	if n.SNS.Enabled {
		multi = append(multi, awsnotify.NewSNSNotifier(awsCfg, n.SNS.TopicARN))
	}
	if n.SES.Enabled {
		multi = append(multi, awsnotify.NewSESNotifier(awsCfg, n.SES.FromEmail, n.SES.ToEmails))
	}
	return multi, nil
}
