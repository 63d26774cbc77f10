package devicebus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Topics names the hardware-facing channels.
type Topics struct {
	Inbound  string
	Outbound string
}

// DefaultTopics returns the topic names the installation hardware ships with.
func DefaultTopics() Topics {
	return Topics{Inbound: DefaultInboundTopic, Outbound: DefaultOutboundTopic}
}

// Client provides Redis Pub/Sub access to the device bus.
// Engine-owned channels are namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	topics       Topics
}

// NewClient creates a new device bus client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Lair instance identifier (must not be empty)
//   - topics: hardware topic names; empty names fall back to the defaults
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string, topics Topics) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	if topics.Inbound == "" {
		topics.Inbound = DefaultInboundTopic
	}
	if topics.Outbound == "" {
		topics.Outbound = DefaultOutboundTopic
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		topics:       topics,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Topics returns the hardware topic names in use.
func (c *Client) Topics() Topics {
	return c.topics
}

// PublishCommand publishes a device command (e.g. "P3Start") on the outbound topic.
// Commands are fire-and-forget: nothing ever waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, command string) error {
	if err := c.rdb.Publish(ctx, c.topics.Outbound, command).Err(); err != nil {
		return fmt.Errorf("failed to publish command %q: %w", command, err)
	}
	return nil
}

// PublishDeviceEvent publishes a raw payload on the inbound topic, as a device would.
// Used by operator tooling to rehearse puzzles without hardware.
func (c *Client) PublishDeviceEvent(ctx context.Context, payload string) error {
	if err := c.rdb.Publish(ctx, c.topics.Inbound, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish device event: %w", err)
	}
	return nil
}

// PublishUpdate mirrors an observer update as JSON on the instance updates channel.
func (c *Client) PublishUpdate(ctx context.Context, update map[string]any) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	if err := c.rdb.Publish(ctx, UpdatesChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	return nil
}

// Subscription represents an active subscription to raw device payloads.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan string
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of raw device payloads.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan string {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// UpdateSubscription represents an active subscription to mirrored observer updates.
type UpdateSubscription struct {
	events <-chan map[string]any
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded updates.
func (s *UpdateSubscription) Events() <-chan map[string]any {
	return s.events
}

// Errors returns the channel of decode errors. Bad messages are skipped.
func (s *UpdateSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *UpdateSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeDeviceEvents subscribes to the inbound device topic.
// The subscription is confirmed before returning, so no payload published after
// this call returns is missed.
//
// Events are delivered on a buffered channel (size 64). Redis Pub/Sub is at-most-once:
// a subscriber that falls too far behind loses messages.
func (c *Client) SubscribeDeviceEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, c.topics.Inbound)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.topics.Inbound, err)
	}

	eventsChan := make(chan string, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				select {
				case eventsChan <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeUpdates subscribes to the mirrored observer updates of this instance.
func (c *Client) SubscribeUpdates(ctx context.Context) (*UpdateSubscription, error) {
	channel := UpdatesChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan map[string]any, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var update map[string]any
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal update: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- update:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &UpdateSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
