package redis

import (
	"context"
	"strconv"
	"testing"

	"vendor-payout-ledger/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, s *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: s.Host(), Port: port}
}

func TestNewClient_Connects(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), redisConfigFor(t, s), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := redisConfigFor(t, s)
	s.Close()

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
