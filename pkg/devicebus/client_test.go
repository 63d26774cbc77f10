package devicebus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance", DefaultTopics())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
		assert.Equal(t, DefaultTopics(), client.Topics())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "", DefaultTopics())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})

	t.Run("fills missing topic names", func(t *testing.T) {
		client, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "x", Topics{Inbound: "IN"})
		require.NoError(t, err)
		defer client.Close()
		assert.Equal(t, Topics{Inbound: "IN", Outbound: DefaultOutboundTopic}, client.Topics())
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestSubscribeDeviceEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("receives published payloads in order", func(t *testing.T) {
		sub, err := client.SubscribeDeviceEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, client.PublishDeviceEvent(ctx, "P1,3,4"))
		require.NoError(t, client.PublishDeviceEvent(ctx, "P1,5,5"))

		for _, want := range []string{"P1,3,4", "P1,5,5"} {
			select {
			case got := <-sub.Events():
				assert.Equal(t, want, got)
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for device event")
			}
		}
	})

	t.Run("closes events channel on Close", func(t *testing.T) {
		sub, err := client.SubscribeDeviceEvents(ctx)
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("events channel not closed")
		}
	})
}

func TestPublishCommand(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	outbound := mr.NewSubscriber()
	defer outbound.Close()
	outbound.Subscribe(DefaultOutboundTopic)

	require.NoError(t, client.PublishCommand(ctx, "P2Start"))

	select {
	case msg := <-outbound.Messages():
		assert.Equal(t, DefaultOutboundTopic, msg.Channel)
		assert.Equal(t, "P2Start", msg.Message)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for command")
	}
}

func TestSubscribeUpdates(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeUpdates(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.PublishUpdate(ctx, map[string]any{"puzzle_id": 4, "streak": 1}))

	select {
	case update := <-sub.Events():
		assert.Equal(t, float64(4), update["puzzle_id"])
		assert.Equal(t, float64(1), update["streak"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
}
