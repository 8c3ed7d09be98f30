package alertfeed

import (
	"context"
	"io"
	"testing"
	"time"

	"lifeline-plus/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewFeed(client, "", log), mr
}

func TestFeed_PublishSubscribe(t *testing.T) {
	feed, _ := newTestFeed(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	alert := entity.EmergencyAlert{ID: uuid.New(), EmergencyType: entity.EmergencyTypeStroke, Status: entity.AlertStatusActive}
	require.NoError(t, feed.Publish(ctx, Event{Type: EventAlertCreated, Alert: alert}))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventAlertCreated, ev.Type)
		assert.Equal(t, alert.ID, ev.Alert.ID)
		assert.Equal(t, entity.EmergencyTypeStroke, ev.Alert.EmergencyType)
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert event")
	}
}

func TestFeed_CloseEndsStream(t *testing.T) {
	feed, mr := newTestFeed(t)

	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mr.PubSubNumSub(DefaultChannel)[DefaultChannel])

	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed")
	}
}
