package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/wayfarer"
	"github.com/aretw0/wayfarer/internal/config"
	"github.com/aretw0/wayfarer/pkg/adapters/file"
	loamAdapter "github.com/aretw0/wayfarer/pkg/adapters/loam"
	"github.com/aretw0/wayfarer/pkg/adapters/memory"
	"github.com/aretw0/wayfarer/pkg/adapters/redis"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/gateway"
	"github.com/aretw0/wayfarer/pkg/observability"
	"github.com/aretw0/wayfarer/pkg/persistence/middleware"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/aretw0/wayfarer/pkg/synth"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime bundles an engine with the metrics that observe it.
type Runtime struct {
	Engine  *wayfarer.Engine
	Metrics *observability.Metrics
}

// NewRuntime translates the configuration into engine options and builds the engine.
// Metrics are registered on a fresh registry; extra hooks run after the built-in ones.
func NewRuntime(cfg *config.Config, logger *slog.Logger, extra ...domain.LifecycleHooks) (*Runtime, error) {
	src, err := NewSource(cfg.Registry)
	if err != nil {
		return nil, err
	}
	gw, err := NewGateway(cfg.Gateway, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := append([]domain.LifecycleHooks{metrics.Hooks(), observability.LoggingHooks(logger)}, extra...)

	opts := []wayfarer.Option{
		wayfarer.WithLogger(logger),
		wayfarer.WithCapabilitySource(src),
		wayfarer.WithGateway(gw),
		wayfarer.WithRouterConfig(cfg.Router.Config),
		wayfarer.WithCacheSize(cfg.Router.CacheSize),
		wayfarer.WithProfiles(cfg.ProfileList()...),
		wayfarer.WithLifecycleHooks(domain.ComposeHooks(hooks...)),
		wayfarer.WithMaxParallel(cfg.Engine.MaxParallel),
		wayfarer.WithSynthOptions(synth.WithMaxChars(cfg.Synth.MaxReplyChars), synth.WithSeparator(cfg.Synth.Separator)),
	}
	if cfg.Engine.SerializeSessions {
		opts = append(opts, wayfarer.WithSerializedSessions())
	}
	if cfg.Engine.Refinement {
		opts = append(opts, wayfarer.WithRefinement())
	}

	var store ports.SessionStore
	switch cfg.Store.Backend {
	case config.StoreRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		store = rs
		opts = append(opts, wayfarer.WithLocker(redis.NewLocker(rs.Client(), rc.Prefix), cfg.Store.LockTTL))
	case config.StoreFile:
		store = file.New(cfg.Store.Dir)
	default:
		store = memory.NewStore()
	}
	mws, err := NewStoreMiddleware(cfg.Store.Privacy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, wayfarer.WithStore(middleware.Chain(store, mws...)))

	eng, err := wayfarer.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return &Runtime{Engine: eng, Metrics: metrics}, nil
}

// NewStoreMiddleware builds the privacy wrappers for the session store.
// Masking runs before encryption so only redacted text is sealed.
func NewStoreMiddleware(cfg config.PrivacyConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.MaskKeys) > 0 || cfg.RedactUtterances {
		var text []string
		if cfg.RedactUtterances {
			text = middleware.DefaultTextPatterns
		}
		pii, err := middleware.NewPIIMiddleware(cfg.MaskKeys, text)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	active, fallback, err := cfg.DecodeKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// NewSource picks the capability catalogue named by the configuration.
func NewSource(cfg config.RegistryConfig) (ports.CapabilitySource, error) {
	switch {
	case cfg.Dir != "":
		return loamAdapter.Open(cfg.Dir)
	case cfg.Path != "":
		return registry.NewFileSource(cfg.Path), nil
	}
	return registry.DefaultSource(), nil
}

// NewGateway builds the configured backend, wrapped with retries and an
// optional failover backend.
func NewGateway(cfg config.GatewayConfig, logger *slog.Logger) (ports.Gateway, error) {
	primary, err := backend(cfg.Backend, cfg)
	if err != nil {
		return nil, err
	}

	var gw ports.Gateway = primary
	if cfg.Retries > 0 && cfg.Backend != config.BackendOffline {
		gw = gateway.NewRetry(gw, cfg.Retries, gateway.WithRetryLogger(logger))
	}
	if cfg.FallbackBackend != "" && cfg.FallbackBackend != cfg.Backend {
		// The fallback backend does not inherit model, URL or key.
		secondary, err := backend(cfg.FallbackBackend, config.GatewayConfig{})
		if err != nil {
			return nil, err
		}
		gw = gateway.NewFailover(gw, secondary, logger)
	}
	return gw, nil
}

func backend(name string, cfg config.GatewayConfig) (ports.Gateway, error) {
	switch name {
	case config.BackendOllama:
		opts := []gateway.OllamaOption{}
		if cfg.BaseURL != "" {
			opts = append(opts, gateway.WithOllamaURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, gateway.WithOllamaModel(cfg.Model))
		}
		return gateway.NewOllama(opts...), nil
	case config.BackendOpenAI:
		return gateway.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case config.BackendAnthropic:
		return gateway.NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case config.BackendOffline:
		return gateway.Offline{}, nil
	}
	return nil, fmt.Errorf("unknown gateway backend %q", name)
}
