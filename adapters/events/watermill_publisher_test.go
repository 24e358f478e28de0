package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tollgate/core"
)

func TestWatermillPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub, "")
	expires := time.Date(2025, 7, 17, 0, 23, 29, 0, time.UTC)
	require.NoError(t, pub.PublishSessionEvent(ctx, core.SessionEvent{
		Kind:      core.EventIssued,
		Subject:   "alice",
		ExpiresAt: expires,
		At:        expires.Add(-time.Hour),
	}))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(core.EventIssued), msg.Metadata.Get("kind"))

		var event core.SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "alice", event.Subject)
		assert.True(t, event.ExpiresAt.Equal(expires))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (brokenPublisher) Close() error                              { return nil }

func TestWatermillPublisherError(t *testing.T) {
	pub := NewWatermillPublisher(brokenPublisher{}, "custom")

	err := pub.PublishSessionEvent(context.Background(), core.SessionEvent{Kind: core.EventRevoked})
	assert.ErrorContains(t, err, "broker down")
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishSessionEvent(context.Background(), core.SessionEvent{}))
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(zerolog.New(&buf)).With(watermill.LogFields{"topic": DefaultTopic})

	logger.Info("published", watermill.LogFields{"uuid": "abc"})
	logger.Error("publish failed", errors.New("boom"), nil)

	out := buf.String()
	assert.Contains(t, out, `"topic":"tollgate.sessions"`)
	assert.Contains(t, out, `"uuid":"abc"`)
	assert.Contains(t, out, `"error":"boom"`)
}
