package cache

import (
	"fmt"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RegistryFactory creates loading registries based on configuration
type RegistryFactory struct {
	redisConfig           config.RedisConfig
	registryConfig        config.RegistryConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RegistryFactoryOption is a functional option for configuring the factory
type RegistryFactoryOption func(*RegistryFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RegistryFactoryOption {
	return func(f *RegistryFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to a process-local registry
func WithInMemoryFallback(allow bool) RegistryFactoryOption {
	return func(f *RegistryFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRegistryFactory creates a new factory
func NewRegistryFactory(redisCfg config.RedisConfig, registryCfg config.RegistryConfig, opts ...RegistryFactoryOption) *RegistryFactory {
	f := &RegistryFactory{
		redisConfig:    redisCfg,
		registryConfig: registryCfg,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the configured registry.
// The memory backend never fails; the redis backend fails unless fallback is allowed.
func (f *RegistryFactory) Create() (appinvoice.LoadingRegistry, error) {
	if f.registryConfig.Backend != config.RegistryRedis {
		f.logger.Info("Using in-memory loading registry")
		return appinvoice.NewMemoryLoadingRegistry(), nil
	}

	registry, err := NewRedisLoadingRegistry(
		f.redisConfig.Addr(),
		f.redisConfig.Password,
		f.redisConfig.DB,
		f.registryConfig.TTL,
	)
	if err == nil {
		f.logger.Info("Using Redis loading registry", zap.String("addr", f.redisConfig.Addr()))
		return registry, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for loading registry but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory loading registry. "+
		"Busy flags are not shared between instances.",
		zap.Error(err),
	)
	return appinvoice.NewMemoryLoadingRegistry(), nil
}
