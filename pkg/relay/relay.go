// Package relay forwards flow snapshots to redis so a presentation layer in
// another process can render the swap.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"swapflow/pkg/flow"
)

// latestTTL bounds how long the last snapshot stays readable after the
// publisher goes away.
const latestTTL = 24 * time.Hour

// Message is the payload published for every snapshot.
type Message struct {
	Seq   uint64     `json:"seq"`
	At    time.Time  `json:"at"`
	State flow.State `json:"state"`
}

// Bus is where messages go. *RedisBus implements it.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StoreLatest(ctx context.Context, key string, payload []byte) error
}

// RedisBus publishes over redis pub/sub and keeps the last payload under a key.
type RedisBus struct {
	rdb *redis.Client
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, addr, password string) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisBus{rdb: rdb}, nil
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) StoreLatest(ctx context.Context, key string, payload []byte) error {
	if err := b.rdb.Set(ctx, key, payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Latest returns the last snapshot stored for channel, if any.
func (b *RedisBus) Latest(ctx context.Context, channel string) (Message, bool, error) {
	raw, err := b.rdb.Get(ctx, LatestKey(channel)).Bytes()
	if err == redis.Nil {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("redis: get %s: %w", LatestKey(channel), err)
	}
	msg, err := Decode(raw)
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

// Follow subscribes to channel and decodes every message until ctx ends.
// Undecodable payloads are skipped.
func (b *RedisBus) Follow(ctx context.Context, channel string) (<-chan Message, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := Decode([]byte(m.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis connection.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

// LatestKey is the key holding the last snapshot published on channel.
func LatestKey(channel string) string {
	return channel + ":latest"
}

// Decode parses a published payload.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("relay: decode message: %w", err)
	}
	return msg, nil
}

// Relay publishes snapshots as they arrive.
type Relay struct {
	bus     Bus
	channel string
	logger  *slog.Logger
	now     func() time.Time
	seq     uint64
}

// New returns a relay publishing on channel.
func New(bus Bus, channel string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		bus:     bus,
		channel: channel,
		logger:  logger.With(slog.String("component", "relay")),
		now:     time.Now,
	}
}

// Publish sends one snapshot and stores it as the latest.
func (r *Relay) Publish(ctx context.Context, st flow.State) error {
	r.seq++
	payload, err := json.Marshal(Message{Seq: r.seq, At: r.now(), State: st})
	if err != nil {
		return fmt.Errorf("relay: encode state: %w", err)
	}
	if err := r.bus.Publish(ctx, r.channel, payload); err != nil {
		return err
	}
	return r.bus.StoreLatest(ctx, LatestKey(r.channel), payload)
}

// Run publishes every snapshot from updates until the channel closes or ctx
// ends. Publish failures are logged; the flow never waits on the relay.
func (r *Relay) Run(ctx context.Context, updates <-chan flow.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Publish(ctx, st); err != nil {
				r.logger.Warn("snapshot not relayed",
					slog.String("channel", r.channel),
					slog.String("step", st.Step.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
