package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// DefaultChannelPrefix is the Redis channel prefix used when none is configured.
const DefaultChannelPrefix = "conversion-progress"

// Channel returns the Redis channel carrying events for jobID.
func Channel(prefix, jobID string) string {
	return prefix + ":" + jobID
}

// RedisPublisher publishes events as JSON on a per-job Redis channel.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPublisher creates a publisher on client. An empty prefix selects
// DefaultChannelPrefix.
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(p.prefix, ev.JobID), data).Err(); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("failed to publish event for job %s: %w", ev.JobID, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues("redis", "success").Inc()
	return nil
}

// Bridge subscribes to every job channel under a prefix and republishes the
// decoded events to a local Publisher, typically the API process's Hub.
type Bridge struct {
	client redis.UniversalClient
	prefix string
	dst    Publisher
}

// NewBridge creates a bridge from Redis into dst.
func NewBridge(client redis.UniversalClient, prefix string, dst Publisher) *Bridge {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Bridge{client: client, prefix: prefix, dst: dst}
}

// Run forwards events until ctx is cancelled or the subscription ends.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, b.prefix+":*")
	defer func() {
		if err := sub.Close(); err != nil {
			logging.Debug("Failed to close progress subscription: %v", err)
		}
	}()

	// Wait for the subscription to be confirmed so startup errors surface.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s:*: %w", b.prefix, err)
	}
	logging.Info("Forwarding progress events from Redis channels %s:*", b.prefix)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := b.deliver(ctx, msg.Channel, msg.Payload); err != nil {
				logging.Warn("Dropping progress message on %s: %v", msg.Channel, err)
			}
		}
	}
}

func (b *Bridge) deliver(ctx context.Context, channel, payload string) error {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("invalid event payload: %w", err)
	}
	// The channel name is authoritative for the job ID.
	if id := strings.TrimPrefix(channel, b.prefix+":"); id != channel && id != "" {
		ev.JobID = id
	}
	return b.dst.Publish(ctx, ev)
}
