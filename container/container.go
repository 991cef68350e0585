package container

import (
	"context"
	"log/slog"
	"net/http"

	"rewards-backend/config"
	"rewards-backend/core/rewards"
	"rewards-backend/handlers"
	"rewards-backend/mcp"
	"rewards-backend/metrics"
	"rewards-backend/middleware"
	"rewards-backend/services"
	auth "rewards-backend/storage/auth"
	store "rewards-backend/storage/rewards"
)

// Container holds all application dependencies
type Container struct {
	Config config.Config
	Logger *slog.Logger

	// Storage
	Store   rewards.Store
	Keys    *auth.APIKeyStore
	PGKeys  *auth.PGAPIKeyStore // nil unless the postgres driver is used
	Metrics *metrics.Recorder
	Engine  *rewards.Engine

	// Services
	QRCodeService *services.QRCodeService
	HealthService *services.HealthService

	// Handlers
	RewardsHandler *handlers.RewardsHandler
	APIKeyHandler  *handlers.APIKeyHandler
	HealthHandler  *handlers.HealthHandler
	MCPServer      *mcp.MCPServer
}

// NewContainer opens the configured store, seeds config keys and tasks and
// builds every service and handler. mcpIdentity is the key MCP stdio calls
// run as; HTTP bridge calls use the caller's own key.
func NewContainer(ctx context.Context, cfg config.Config, logger *slog.Logger, mcpIdentity auth.APIKey) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger, Store: st}

	c.Keys = auth.NewAPIKeyStore()
	c.Keys.Reload("config", cfg.AdminKeys, cfg.APIKeys)
	if cfg.Store.Driver == "postgres" {
		if c.PGKeys, err = auth.NewPGAPIKeyStore(ctx, cfg.Store.PGDSN); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Metrics = metrics.New()
	c.Engine = rewards.NewEngine(st,
		rewards.WithAuthorizer(rewards.AuthorizerFunc(auth.IsAdmin)),
		rewards.WithRecorder(c.Metrics),
		rewards.WithLogger(logger),
		rewards.WithTicketGate(cfg.Gate()),
	)
	if err := c.SeedTasks(ctx, cfg.Tasks); err != nil {
		c.Close()
		return nil, err
	}

	c.QRCodeService = services.NewQRCodeService()
	c.HealthService = services.NewHealthService(cfg.Store.Driver, c.Engine.TicketGate())

	c.RewardsHandler = handlers.NewRewardsHandler(c.Engine, c.QRCodeService, logger)
	c.APIKeyHandler = handlers.NewAPIKeyHandler(c.Issuer(), logger)
	c.HealthHandler = handlers.NewHealthHandler(c.HealthService)
	c.MCPServer = mcp.NewMCPServer(c.Engine, mcpIdentity, logger)
	return c, nil
}

// SeedTasks defines tasks with config authority. An empty list is a no-op.
func (c *Container) SeedTasks(ctx context.Context, tasks []rewards.TaskDefinition) error {
	if len(tasks) == 0 {
		return nil
	}
	return c.Engine.DefineTasks(auth.System(ctx, "config"), tasks)
}

// Validator checks config keys first, then persisted keys when present.
func (c *Container) Validator() auth.APIKeyValidator {
	if c.PGKeys != nil {
		return auth.Chain{c.Keys, c.PGKeys}
	}
	return c.Keys
}

// Issuer persists issued keys when postgres is available.
func (c *Container) Issuer() auth.APIKeyIssuer {
	if c.PGKeys != nil {
		return c.PGKeys
	}
	return c.Keys
}

// Router builds the HTTP handler tree. limiter may be nil.
func (c *Container) Router(limiter *middleware.RateLimiter) http.Handler {
	return handlers.NewRouter(handlers.RouterConfig{
		Rewards: c.RewardsHandler,
		Keys:    c.APIKeyHandler,
		Health:  c.HealthHandler,
		Metrics: c.Metrics.Handler(),
		MCP:     c.MCPServer.HTTPHandler(),
		Auth:    c.Validator(),
		Limiter: limiter,
		Logger:  c.Logger,
	})
}

// Close releases the key store pool and the reward store.
func (c *Container) Close() error {
	if c.PGKeys != nil {
		c.PGKeys.Close()
	}
	return c.Store.Close()
}
