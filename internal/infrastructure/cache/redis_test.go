package cache

import (
	"net"
	"testing"

	"lifeline-plus/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	client, err := NewRedisClient(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = NewRedisClient(config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
