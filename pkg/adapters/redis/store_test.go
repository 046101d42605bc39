package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RunStore = (*redis.Store)(nil)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunRunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_ContractWithTTL(t *testing.T) {
	_, client := setup(t)
	ports.RunRunStoreContract(t, redis.NewFromClient(client, redis.WithTTL(time.Hour)))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	started := time.Now()
	require.NoError(t, store.Save(ctx, &domain.RunRecord{ID: "old", StartedAt: started}))

	assert.Equal(t, time.Second, mr.TTL("canopy:run:old"))

	mr.FastForward(2 * time.Second)
	require.NoError(t, store.Save(ctx, &domain.RunRecord{ID: "new", StartedAt: started.Add(time.Minute)}))

	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)

	members, err := mr.ZMembers("canopy:runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members, "expired runs are pruned from the index")
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("ci:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.RunRecord{ID: "r1", StartedAt: time.Now()}))
	assert.True(t, mr.Exists("ci:run:r1"))
	assert.False(t, mr.Exists("canopy:run:r1"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Load(context.Background(), "r1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRunNotFound)
}
