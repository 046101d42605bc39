package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/adapters/file"
	loamadapter "github.com/aretw0/canopy/pkg/adapters/loam"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	redisadapter "github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/persistence/middleware"
	"github.com/aretw0/canopy/pkg/ports"
)

// Backend bundles the run store and the locker selected by the configuration.
type Backend struct {
	Store  ports.RunStore
	Locker ports.Locker
	close  func() error
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend creates the run store (and matching locker) named by cfg.Store,
// wrapped with the redaction and encryption middlewares cfg enables.
func OpenBackend(cfg Config) (*Backend, error) {
	b, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := middleware.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("invalid redact pattern: %w", err)
		}
		mws = append(mws, redact)
	}
	if len(cfg.EncryptionKeys) > 0 {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    cfg.EncryptionKeys[0],
			FallbackKeys: cfg.EncryptionKeys[1:],
		}))
	}
	b.Store = middleware.Chain(b.Store, mws...)
	return b, nil
}

func openBackend(cfg Config) (*Backend, error) {
	switch cfg.Store {
	case "memory":
		return &Backend{Store: memory.NewStore(), Locker: memory.NewLocker()}, nil
	case "file":
		dir := cfg.RunsDir
		if dir == "" {
			dir = filepath.Join(cfg.Dir, file.DefaultDir)
		}
		return &Backend{Store: file.New(dir), Locker: memory.NewLocker()}, nil
	case "redis":
		var opts []redisadapter.Option
		if cfg.RedisTTL > 0 {
			opts = append(opts, redisadapter.WithTTL(cfg.RedisTTL))
		}
		if cfg.RedisPrefix != "" {
			opts = append(opts, redisadapter.WithPrefix(cfg.RedisPrefix))
		}
		store := redisadapter.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		return &Backend{
			Store:  store,
			Locker: redisadapter.NewLocker(store.Client(), cfg.RedisPrefix),
			close:  store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// CreateEngine initializes a Canopy engine with standard CLI conventions.
// The returned backend must be closed by the caller.
func CreateEngine(cfg Config, logger *slog.Logger, extra ...canopy.Option) (*canopy.Engine, *Backend, error) {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	engineOpts := []canopy.Option{
		canopy.WithLogger(logger),
		canopy.WithStore(backend.Store),
		canopy.WithLocker(backend.Locker, 0),
	}
	if cfg.Loader == "loam" {
		loader, err := loamadapter.Open(cfg.Dir)
		if err != nil {
			_ = backend.Close()
			return nil, nil, fmt.Errorf("error opening workspace documents: %w", err)
		}
		engineOpts = append(engineOpts, canopy.WithLoader(loader))
	}
	engineOpts = append(engineOpts, extra...)

	engine, err := canopy.New(cfg.Dir, engineOpts...)
	if err != nil {
		_ = backend.Close()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, backend, nil
}
