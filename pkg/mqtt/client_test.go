package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"kds/v1/commands/remove_order", "kds/v1/commands/remove_order", true},
		{"kds/v1/commands/+", "kds/v1/commands/update_order_status", true},
		{"kds/v1/commands/+", "kds/v1/commands/a/b", false},
		{"kds/v1/#", "kds/v1/events/new_order", true},
		{"kds/v1/events/+", "kds/v1/commands/x", false},
		{"kds/v1/+/x", "kds/v1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicsMatch(tt.filter, tt.topic), "%s vs %s", tt.filter, tt.topic)
	}
}

func TestTopicFilterStripsSharedPrefix(t *testing.T) {
	assert.Equal(t, "kds/v1/commands/+", topicFilter("$share/kds/kds/v1/commands/+"))
	assert.Equal(t, "kds/v1/commands/+", topicFilter("kds/v1/commands/+"))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "http://broker:1883"})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "mqtt://127.0.0.1:1883"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
}
