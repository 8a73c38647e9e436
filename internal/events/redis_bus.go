package events

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultChannelPrefix = "chatsync:"

// envelope is the redis wire format. The payload stays JSON so subscribers can
// forward it to websocket clients without re-encoding.
type envelope struct {
	Name string `msgpack:"n"`
	Data []byte `msgpack:"d"`
}

func encodeEnvelope(evt Event) ([]byte, error) {
	return msgpack.Marshal(envelope{Name: evt.Name, Data: evt.Data})
}

func decodeEnvelope(topic string, b []byte) (Event, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Name: env.Name, Data: env.Data}, nil
}

// RedisBus shares events between server instances through redis pub/sub. A
// redis channel delivers messages in publish order, and every subscription
// drains its channel from one goroutine, so per-topic order holds.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisBus{client: client, prefix: prefix, subs: make(map[*redis.PubSub]struct{})}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBus) Publish(ctx context.Context, topic, name string, payload interface{}) error {
	evt, err := NewEvent(topic, name, payload)
	if err != nil {
		return err
	}
	data, err := encodeEnvelope(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(topic), data).Err()
}

func (b *RedisBus) Subscribe(topic, name string, handler Handler) func() {
	ps := b.client.Subscribe(context.Background(), b.channel(topic))

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			evt, err := decodeEnvelope(topic, []byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("dropping undecodable event")
				continue
			}
			if !matches(name, evt.Name) {
				continue
			}
			deliverSafely(handler, evt)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ps)
			b.mu.Unlock()
			if err := ps.Close(); err != nil {
				log.Debug().Err(err).Str("topic", topic).Msg("closing redis subscription")
			}
		})
	}
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ps)
	}
	return nil
}

func deliverSafely(handler Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", evt.Topic).Str("event", evt.Name).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	handler(evt)
}
