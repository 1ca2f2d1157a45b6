package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	connected := false
	c, err := New(Config{}, "frontdesk", Handlers{OnConnect: func() { connected = true }})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	require.NoError(t, c.Connect())
	assert.True(t, connected)

	c.Publish(c.Topic("event"), []byte(`{}`), false)
	c.Disconnect()
}

func TestTopic(t *testing.T) {
	c, err := New(Config{}, "frontdesk", Handlers{})
	require.NoError(t, err)
	assert.Equal(t, "checkin/status/node/frontdesk/event", c.Topic("event"))
}

func TestBrokerURL(t *testing.T) {
	url, tlsConfig, err := brokerURL(Config{Host: "broker.local"})
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker.local:1883", url)
	assert.Nil(t, tlsConfig)

	_, _, err = brokerURL(Config{Host: "broker.local", CACert: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestEnabledClientBuilds(t *testing.T) {
	c, err := New(Config{Host: "broker.local", Port: 1884}, "frontdesk", Handlers{})
	require.NoError(t, err)
	assert.True(t, c.IsEnabled())
}
