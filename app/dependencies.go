package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/upb/case-events/cognito"
	"github.com/upb/case-events/config"
	"github.com/upb/case-events/internal/observability"
	"github.com/upb/case-events/middleware"
	"github.com/upb/case-events/repositories"
	"github.com/upb/case-events/repositories/postgres"
	"github.com/upb/case-events/services/capture"
	"github.com/upb/case-events/services/events"
	"github.com/upb/case-events/services/notify"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger
	Redis  *redis.Client

	// Metrics
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Repositories
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Services
	CaptureStore *capture.Store
	CaptureCache *capture.Cache
	Events       *events.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies connects to PostgreSQL and wires up all application
// dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires everything on top of an open repository
// factory.
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initMetrics(cfg)

	if err := deps.initRepositories(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	deps.initEvents(cfg)
	deps.initNotifications(ctx, cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	d.Registry = prometheus.NewRegistry()
	if !cfg.Observability.MetricsEnabled {
		return
	}
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewMetrics(d.Registry)
}

// initRepositories builds the repositories and, when enabled, creates the
// event tables.
func (d *Dependencies) initRepositories(ctx context.Context, cfg *config.Config) error {
	if cfg.Events.SchemaInit {
		if err := d.RepoFactory.InitEventSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize event schema: %w", err)
		}
		d.Logger.Info("event schema initialized")
	}

	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initEvents(cfg *config.Config) {
	d.CaptureStore = capture.NewStore(d.Repos.CaptureRules, d.TxManager, d.Logger)
	d.CaptureCache = capture.NewCache(d.CaptureStore, cfg.Events.CaptureCacheTTL, d.Logger, d.Metrics)
	d.CaptureStore.OnUpdate(d.CaptureCache.Invalidate)

	d.Events = events.NewService(d.CaptureCache, events.Config{
		BufferSize:   cfg.Events.BufferSize,
		DefaultLimit: cfg.Events.DefaultLimit,
		MaxLimit:     cfg.Events.MaxLimit,
		CapturedBy:   cfg.Events.CapturedBy,
		HookTimeout:  cfg.Events.HookTimeout,
	}, d.Logger, d.Metrics)
	d.Events.Register(events.Backend{
		Events: d.Repos.Events,
		Users:  d.Repos.Users,
	})
}

// initNotifications attaches the Redis publisher. Notifications are
// optional: an unreachable Redis is logged and skipped.
func (d *Dependencies) initNotifications(ctx context.Context, cfg *config.Config) {
	if !cfg.Redis.Enabled() {
		d.Logger.Info("redis not configured, event notifications disabled")
		return
	}

	client, err := notify.NewClient(ctx, cfg.Redis)
	if err != nil {
		d.Logger.Warn("redis unavailable, event notifications disabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		return
	}

	d.Redis = client
	d.Events.SetHook(notify.NewRedisHook(client, cfg.Redis.Channel, d.Logger))
	d.Logger.Info("event notifications enabled",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("channel", cfg.Redis.Channel))
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Cognito.UserPoolID == "" || cfg.Cognito.ClientID == "" {
		d.Logger.Warn("cognito not configured, protected routes will reject all requests")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}

	cognitoValidator := cognito.NewCognitoValidator(cognito.Config{
		Region:      cfg.Cognito.Region,
		UserPoolID:  cfg.Cognito.UserPoolID,
		ClientID:    cfg.Cognito.ClientID,
		CacheTTL:    time.Hour,
		HTTPTimeout: 10 * time.Second,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(&cognitoTokenValidatorAdapter{validator: cognitoValidator}, d.Logger)
	d.Logger.Info("cognito token validation enabled",
		zap.String("user_pool_id", cfg.Cognito.UserPoolID))
}

// cognitoTokenValidatorAdapter adapts cognito.CognitoValidator to middleware.TokenValidator
type cognitoTokenValidatorAdapter struct {
	validator *cognito.CognitoValidator
}

func (a *cognitoTokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Sub:           parsed.Sub,
		Email:         parsed.Email,
		EmailVerified: parsed.EmailVerified,
		Name:          parsed.DisplayName(),
		Groups:        parsed.Groups,
	}, nil
}

// rejectAllValidator rejects all tokens (used when Cognito is not configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending notification hooks before their transport goes away
	if d.Events != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Events.Close(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop event hooks: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
