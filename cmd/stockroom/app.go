package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goliatone/go-stockroom"
	"github.com/goliatone/go-stockroom/activitymap"
	"github.com/goliatone/go-stockroom/config"
	"github.com/goliatone/go-stockroom/dashboard"
	"github.com/goliatone/go-stockroom/httpapi"
	"github.com/goliatone/go-stockroom/inventory"
	"github.com/goliatone/go-stockroom/logging"
	"github.com/goliatone/go-stockroom/metrics"
	"github.com/goliatone/go-stockroom/provider/cognito"
	"github.com/goliatone/go-stockroom/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type buildOptions struct {
	globalSignOut bool
}

// App holds the wired dependencies of one CLI invocation.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Manager   *stockroom.Manager
	Inventory *inventory.Client
	Registry  *prometheus.Registry

	closers []func()
}

// Close releases caches and background refreshers.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Logger.Sync()
}

// DashboardOptions returns the configured summary options.
func (a *App) DashboardOptions() []dashboard.Option {
	return []dashboard.Option{dashboard.WithLowStockThreshold(a.Config.LowStockThreshold)}
}

// NewServer builds the local HTTP surface.
func (a *App) NewServer() *httpapi.Server {
	return httpapi.New(a.Manager, a.Inventory,
		httpapi.WithLogger(a.Logger.Named("http")),
		httpapi.WithGatherer(a.Registry),
		httpapi.WithLoginLimiter(httpapi.NewLoginLimiter(a.Config.LoginRateLimit)),
		httpapi.WithDashboardOptions(a.DashboardOptions()...),
	)
}

func buildApp(ctx context.Context, cfg *config.Config, opts buildOptions) (*App, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	cache, err := a.sessionCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := cognito.New(ctx, cognito.Config{
		Region:       cfg.Region,
		UserPoolID:   cfg.UserPoolID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	storeOpts := []stockroom.SessionStoreOption{
		stockroom.WithSessionStoreLogger(logger.Named("session")),
	}
	if cfg.VerifyTokens {
		verifier, err := stockroom.NewJWKSVerifier(stockroom.VerifierConfig{
			JWKSURL:  stockroom.CognitoJWKSURL(cfg.Region, cfg.UserPoolID),
			Issuer:   stockroom.CognitoIssuer(cfg.Region, cfg.UserPoolID),
			Audience: cfg.ClientID,
			Logger:   logger.Named("jwks"),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, verifier.Close)
		storeOpts = append(storeOpts, stockroom.WithTokenVerifier(verifier))
	}

	collector := metrics.NewCollector(a.Registry)
	store := stockroom.NewSessionStore(provider, cache, storeOpts...)

	managerOpts := []stockroom.ManagerOption{
		stockroom.WithManagerLogger(logger.Named("auth")),
		stockroom.WithActivitySink(stockroom.MultiActivitySink{
			collector,
			activitymap.NewLogSink(logger.Zap().Named("audit")),
		}),
	}
	if opts.globalSignOut {
		managerOpts = append(managerOpts, stockroom.WithGlobalSignOut())
	}
	a.Manager = stockroom.NewManager(provider, store, managerOpts...)

	a.Inventory = inventory.NewClient(cfg.APIEndpoint, store,
		inventory.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		inventory.WithLogger(logger.Named("inventory")),
		inventory.WithRecorder(collector),
	)

	return a, nil
}

func (a *App) sessionCache(ctx context.Context) (stockroom.SessionCache, error) {
	cfg := a.Config

	switch cfg.CacheDriver {
	case config.CacheDriverMemory:
		return stockroom.NewMemorySessionCache(), nil

	case config.CacheDriverRedis:
		client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return repository.NewRedisSessionCache(client, cfg.ClientID, cfg.CacheTTL), nil

	default:
		if dir := filepath.Dir(cfg.CachePath); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		db, err := repository.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		cache := repository.NewBunSessionCache(db, cfg.ClientID)
		if err := cache.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("session cache schema: %w", err)
		}
		return cache, nil
	}
}
