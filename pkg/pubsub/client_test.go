package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/shop/topics/orders", topicResourceName("shop", "orders"))
	assert.Equal(t, "projects/other/topics/orders", topicResourceName("shop", "projects/other/topics/orders"))
	assert.Empty(t, topicResourceName("", "orders"))
	assert.Empty(t, topicResourceName("shop", " "))
}

func TestNewClientRequiresConfiguration(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errNoTopic)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.Error(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
