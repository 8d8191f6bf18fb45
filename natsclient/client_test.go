package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/lvmgate/errors"
)

func TestNewClientRequiresURLs(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient([]string{"nats://localhost:4222"})
	require.NoError(t, err)

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Nil(t, c.GetConnection())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
}

func TestClientOptions(t *testing.T) {
	c, err := NewClient([]string{"nats://localhost:4222"},
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(time.Second),
		WithDrainTimeout(2*time.Second),
		WithCredentials("user", "pass"),
		WithToken("tok"),
		WithName("lvmgated"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, "user", c.username)
	assert.Equal(t, "tok", c.token)
	assert.Equal(t, "lvmgated", c.clientName)

	// Auth and name options materialize as NATS connection options
	opts := c.buildConnectionOptions()
	assert.NotEmpty(t, opts)
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	c, err := NewClient([]string{"nats://localhost:4222"})
	require.NoError(t, err)

	assert.NoError(t, c.Close(context.Background()))
	// Second close is a no-op
	assert.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusDisconnected, c.Status())
}
