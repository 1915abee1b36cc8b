package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Payphone-Digital/identity/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T, host, port string) *config.Config {
	t.Helper()
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return &config.Config{Redis: config.RedisConfig{
		Enabled:     true,
		Host:        host,
		Port:        p,
		PoolSize:    2,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
	}}
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(redisConfig(t, mr.Host(), mr.Port()))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Cmdable().Set(ctx, "k", "v", 0).Err())

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Contains(t, client.Stats(), "total_conns")
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	client, err := NewClient(redisConfig(t, host, port))
	assert.Error(t, err)
	assert.Nil(t, client)
}
