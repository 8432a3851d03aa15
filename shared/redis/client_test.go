package redis

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewClient(&Config{Host: host, Port: port, RetryAttempts: 1}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.NoError(t, client.Ping(context.Background()))
	require.NotNil(t, client.GetClient())
	assert.NoError(t, client.GetClient().HSet(context.Background(), "jobs1", "status", "ok").Err())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	mr.Close()

	client, err := NewClient(&Config{
		Host:          host,
		Port:          port,
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
		PingTimeout:   200 * time.Millisecond,
	}, discardLogger())

	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewClient(&Config{Host: host, Port: port, RetryAttempts: 1}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.NoError(t, client.Ping(context.Background()))

	// readiness must report the store as down once the server goes away
	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
