package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicName(t *testing.T) {
	assert.Equal(t, "flourish.orders", TopicName("flourish", "orders"))
	assert.Equal(t, "orders", TopicName("", "orders"))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), "orders", "k", map[string]string{"a": "b"}))
	p.Close()
}
