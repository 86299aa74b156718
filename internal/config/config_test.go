package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-dev/lodestore/internal/config"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("applicationID: app\nendpoint: https://example.test\n"))
	require.NoError(t, err)
	assert.Equal(t, config.TransportREST, cfg.Transport)
	assert.Equal(t, 10, cfg.TransactionRetries)
	assert.Equal(t, 20, cfg.IteratorBufferSize)
}

func TestParseRequiresApplicationID(t *testing.T) {
	_, err := config.Parse([]byte("endpoint: https://example.test\n"))
	require.Error(t, err)
}

func TestParseRequiresEndpoint(t *testing.T) {
	_, err := config.Parse([]byte("applicationID: app\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownTransport(t *testing.T) {
	_, err := config.Parse([]byte("applicationID: app\nendpoint: https://example.test\ntransport: carrier-pigeon\n"))
	require.Error(t, err)
}

func TestParseGRPCTransport(t *testing.T) {
	cfg, err := config.Parse([]byte("applicationID: app\nendpoint: 127.0.0.1:9000\ntransport: grpc\n"))
	require.NoError(t, err)
	assert.Equal(t, config.TransportGRPC, cfg.Transport)
}
