package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
)

// envelope wraps a change event on the wire with its publishing instance
// so an instance never replays its own events back into its hub.
type envelope struct {
	Origin string       `json:"origin"`
	Event  stream.Event `json:"event"`
}

// Bridge replicates Hub change events across app instances through a
// Redis pub/sub channel. Delivery is best effort: publish and subscribe
// errors are logged and never fatal, clients fall back to manual refresh.
type Bridge struct {
	client     *redis.Client
	hub        *stream.Hub
	channel    string
	instanceID string
	logger     core.Logger

	mutex  sync.Mutex
	sub    *stream.Subscription
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewBridge(conf *core.Config, hub *stream.Hub, logger core.Logger) *Bridge {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &Bridge{
		client:     client,
		hub:        hub,
		channel:    conf.Redis.ChangeChannel,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
}

// Start begins relaying events in both directions. Calling Start again
// replaces the previous subscription entirely.
func (b *Bridge) Start(ctx context.Context) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stop()

	b.sub = b.hub.Subscribe(64)
	b.pubsub = b.client.Subscribe(ctx, b.channel)
	b.done = make(chan struct{})

	go b.relayOut(ctx, b.sub)
	go b.relayIn(b.pubsub, b.done)
}

// relayOut forwards local hub events to the Redis channel.
func (b *Bridge) relayOut(ctx context.Context, sub *stream.Subscription) {
	for evt := range sub.C {
		if evt.IsRemote() {
			continue
		}
		data, err := json.Marshal(envelope{Origin: b.instanceID, Event: evt})
		if err != nil {
			b.logger.Error(fmt.Sprintf("realtime: marshaling event: %v", err), err)
			continue
		}
		if err = b.client.Publish(ctx, b.channel, data).Err(); err != nil {
			b.logger.Error(fmt.Sprintf("realtime: publishing event: %v", err), err)
		}
	}
}

// relayIn feeds foreign instances' events into the local hub.
func (b *Bridge) relayIn(pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.logger.Error(fmt.Sprintf("realtime: unmarshaling event: %v", err), err)
			continue
		}
		if env.Origin == b.instanceID {
			continue
		}
		b.hub.Publish(env.Event.MarkRemote())
	}
}

// Close stops both relays and releases the Redis client.
func (b *Bridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stop()
	return b.client.Close()
}

// stop tears down the current relays; callers must hold the mutex.
func (b *Bridge) stop() {
	if b.sub != nil {
		b.sub.Close()
		b.sub = nil
	}
	if b.pubsub != nil {
		_ = b.pubsub.Close()
		<-b.done
		b.pubsub = nil
	}
}
