package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "gradebook:analytics:learners", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "gradebook:analytics:learners", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "gradebook:analytics:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositorySurfacesConnectionErrors(t *testing.T) {
	// nothing listens on port 1, so every command fails fast
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, nil)
	defer repo.Close()
	ctx := context.Background()

	var dest []int
	err := repo.Get(ctx, "k", &dest)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)

	assert.Error(t, repo.Set(ctx, "k", []int{1}, time.Second))
	assert.Error(t, repo.DeleteByPattern(ctx, "gradebook:*"))
	assert.Error(t, repo.Ping(ctx))
}

func TestCacheRepositoryRejectsUnencodableValues(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, nil)
	defer repo.Close()

	err := repo.Set(context.Background(), "k", make(chan int), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal cache value")
}
