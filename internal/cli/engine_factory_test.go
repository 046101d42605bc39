package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/adapters/file"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	redisadapter "github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xrSamples = "../../examples/xr-samples"

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = xrSamples
	cfg.RunsDir = t.TempDir()
	cfg.LogLevel = "error"
	return cfg
}

func TestOpenBackend(t *testing.T) {
	cfg := testConfig(t)

	t.Run("memory", func(t *testing.T) {
		cfg := cfg
		cfg.Store = "memory"
		b, err := OpenBackend(cfg)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, b.Store)
		assert.NoError(t, b.Close())
	})

	t.Run("file", func(t *testing.T) {
		b, err := OpenBackend(cfg)
		require.NoError(t, err)
		fs, ok := b.Store.(*file.Store)
		require.True(t, ok)
		assert.Equal(t, cfg.RunsDir, fs.BasePath)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := cfg
		cfg.Store = "redis"
		cfg.RedisAddr = mr.Addr()
		cfg.RedisPrefix = "test:"
		cfg.RedisTTL = time.Minute

		b, err := OpenBackend(cfg)
		require.NoError(t, err)
		defer b.Close()
		assert.IsType(t, &redisadapter.Store{}, b.Store)
		assert.IsType(t, &redisadapter.Locker{}, b.Locker)

		rec := &domain.RunRecord{ID: "r1", Status: domain.RunSucceeded, StartedAt: time.Now()}
		require.NoError(t, b.Store.Save(context.Background(), rec))
		assert.True(t, mr.Exists("test:run:r1"))
	})

	t.Run("middlewares", func(t *testing.T) {
		cfg := cfg
		cfg.Store = "memory"
		cfg.Redact = []string{`token=\S+`}
		cfg.EncryptionKeys = [][]byte{bytes.Repeat([]byte{7}, 32)}

		b, err := OpenBackend(cfg)
		require.NoError(t, err)
		leaf := domain.TaskID{Project: "openxr", Task: "clean"}
		rec := &domain.RunRecord{
			ID:        "r1",
			Status:    domain.RunFailed,
			Errors:    map[domain.TaskID]string{leaf: "denied token=abc"},
			StartedAt: time.Now(),
		}
		require.NoError(t, b.Store.Save(context.Background(), rec))
		loaded, err := b.Store.Load(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "denied ***", loaded.Errors[leaf])
	})

	t.Run("bad redact pattern", func(t *testing.T) {
		cfg := cfg
		cfg.Redact = []string{"("}
		_, err := OpenBackend(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := cfg
		cfg.Store = "s3"
		_, err := OpenBackend(cfg)
		assert.Error(t, err)
	})
}

func TestCreateEngine(t *testing.T) {
	engine, backend, err := CreateEngine(testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer backend.Close()
	assert.Equal(t, "openxr-quest-tutorial", engine.Name)
}

func TestCreateEngine_MissingWorkspace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dir = t.TempDir()
	_, _, err := CreateEngine(cfg, logging.NewNop())
	assert.ErrorIs(t, err, domain.ErrUnresolvedProject)
}
