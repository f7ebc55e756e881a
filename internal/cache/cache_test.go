package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewRedisCache(client)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "products:list:a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "products:list:a", []byte("A"), time.Minute))
	require.NoError(t, c.Set(ctx, "products:list:b", []byte("B"), time.Minute))
	require.NoError(t, c.Set(ctx, "other", []byte("O"), time.Minute))

	val, ok, err := c.Get(ctx, "products:list:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("A"), val)

	require.NoError(t, c.DeletePrefix(ctx, "products:list:"))
	assert.False(t, mr.Exists("products:list:a"))
	assert.False(t, mr.Exists("products:list:b"))
	assert.True(t, mr.Exists("other"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("other"))
}
