package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"model_settings/internal/auth"
	"model_settings/internal/config"
	"model_settings/internal/logging"
	"model_settings/internal/middleware"
	"model_settings/internal/models"
	"model_settings/internal/providers"
	"model_settings/internal/queue"
	"model_settings/internal/ratelimit"
	"model_settings/internal/storage"
	"model_settings/internal/validation"
)

// ProviderService persists a user's provider rows
type ProviderService interface {
	List(ctx context.Context, userID string) ([]*models.Provider, error)
	Create(ctx context.Context, userID string, in models.ProviderInput) (*models.Provider, error)
	Update(ctx context.Context, userID string, id int64, in models.ProviderInput) (*models.Provider, error)
	Delete(ctx context.Context, userID string, id int64) error
	SetPreferred(ctx context.Context, userID string, id int64) error
}

// ConfigService persists a user's configuration values
type ConfigService interface {
	List(ctx context.Context, userID string) ([]*models.ConfigEntry, error)
	Set(ctx context.Context, userID, name, value string) error
	Delete(ctx context.Context, userID, name string) error
}

// HealthCheck reports a backing service failure
type HealthCheck func(ctx context.Context) error

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Providers ProviderService
	Configs   ConfigService
	Prober    providers.Prober
	RateLimit ratelimit.Limiter
	Audit     logging.Sink
	// ValidationMemo holds successful validation results keyed by request hash; nil disables it
	ValidationMemo *storage.LRUCache[*validation.Response]
	Health         map[string]HealthCheck

	closers []func() error
}

// Close releases connections opened by NewDependencies
func (d *Dependencies) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewDependencies connects to Postgres and, when configured, Redis, and wires the services
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{
		Prober:         providers.NewOpenAIProber(providers.ProbeConfig{Timeout: cfg.Validation.Timeout}),
		RateLimit:      ratelimit.NewNoopLimiter(),
		Audit:          logging.NewNoopSink(),
		ValidationMemo: storage.NewLRUCache[*validation.Response](cfg.Validation.CacheSize, cfg.Validation.CacheTTL),
		Health:         map[string]HealthCheck{},
	}

	db, err := storage.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.closers = append(deps.closers, db.Close)
	deps.Health["database"] = db.Health

	if err := db.Migrate(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	enc, err := storage.NewEncryptionFromConfig(cfg.Encryption)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	var (
		listCache   storage.ProviderListCache
		auditQueue  queue.Queue[*logging.AuditRecord] = queue.NewMemoryQueue[*logging.AuditRecord](cfg.Audit.Queue)
		auditTarget logging.Sink                      = logging.NewLogSink()
	)
	if cfg.Redis.Address != "" {
		client, err := storage.NewRedisClient(ctx, &redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		deps.Health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		listCache = storage.NewRedisProviderCache(client, cfg.Cache.ProviderListTTL)
		deps.RateLimit = ratelimit.NewRateLimiter(client)
		auditQueue = queue.NewRedisQueue[*logging.AuditRecord](client, "audit")
		auditTarget = logging.NewRedisSink(client, logging.RedisSinkConfig{Key: cfg.Audit.Key, MaxSize: cfg.Audit.MaxSize})
	} else {
		logging.Warningf("REDIS_ADDRESS not set: provider list cache and validation rate limit are disabled, audit records go to the log")
	}

	sweepCtx, stopSweep := context.WithCancel(context.WithoutCancel(ctx))
	deps.ValidationMemo.StartJanitor(sweepCtx, cfg.Validation.CacheTTL)
	deps.closers = append(deps.closers, func() error { stopSweep(); return nil })

	audit := logging.NewAsyncSink(auditQueue, auditTarget, cfg.Audit.Queue)
	audit.Start(ctx)
	deps.closers = append(deps.closers, audit.Close)
	deps.Audit = audit

	deps.Providers = db.NewProviderRepository(enc, listCache)
	deps.Configs = db.NewConfigRepository()
	return deps, nil
}

// NewHandler registers every route behind request ids and user authentication
func NewHandler(cfg *config.Config, deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return middleware.RequestID(mux)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	user := middleware.UserJWTMiddleware(cfg)
	owner := middleware.UserJWTMiddleware(cfg, auth.RoleOwner)

	// Health check endpoint - public
	mux.HandleFunc("GET /health", deps.handleHealth)

	mux.Handle("GET /api/providers", user(http.HandlerFunc(deps.handleListProviders)))
	mux.Handle("POST /api/provider", owner(http.HandlerFunc(deps.handleCreateProvider)))
	mux.Handle("POST /api/provider/prefer", owner(http.HandlerFunc(deps.handlePreferProvider)))
	mux.Handle("PUT /api/provider/{id}", owner(http.HandlerFunc(deps.handleUpdateProvider)))
	mux.Handle("DELETE /api/provider/{id}", owner(http.HandlerFunc(deps.handleDeleteProvider)))

	mux.Handle("GET /api/configs", user(http.HandlerFunc(deps.handleListConfigs)))
	mux.Handle("PUT /api/configs/{name}", owner(http.HandlerFunc(deps.handleSetConfig)))
	mux.Handle("DELETE /api/configs/{name}", owner(http.HandlerFunc(deps.handleDeleteConfig)))

	validate := &validateHandler{deps: deps, limit: cfg.Validation.RateLimit, timeout: cfg.Validation.Timeout}
	mux.Handle("POST /model/validate", user(validate))
}
