package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, Key("The Earth is flat."), Key("  the earth is FLAT.  "))
	assert.NotEqual(t, Key("a"), Key("b"))
	assert.True(t, strings.HasPrefix(Key("a"), keyPrefix))
}

func TestNewRedisSourceCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisSourceCache(context.Background(), " ", "", 0, time.Minute)
	assert.Error(t, err)
}

func TestRedisSourceCache_UnreachableServer(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisSourceCache(rdb, time.Minute)
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), "q", []string{"https://a.example"}))
}
