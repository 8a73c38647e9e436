//go:generate go run go.uber.org/mock/mockgen -source=bus.go -destination=../mocks/mock_bus.go -package=mocks

// Package events fans committed changes out to subscribers. Delivery is ordered
// per topic and asynchronous with respect to the request that produced it.
package events

import (
	"context"
	"encoding/json"
)

// Event is a published notification. Data holds the JSON encoding of the
// payload so transports can forward it to clients untouched.
type Event struct {
	Topic string          `json:"topic"`
	Name  string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// NewEvent snapshots payload at call time.
func NewEvent(topic, name string, payload interface{}) (Event, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return Event{Topic: topic, Name: name, Data: raw}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Name: name, Data: data}, nil
}

type Handler func(Event)

type Publisher interface {
	Publish(ctx context.Context, topic, name string, payload interface{}) error
}

// Bus is a Publisher that also accepts subscriptions. An empty name subscribes
// to every event on the topic. The returned function removes the subscription.
type Bus interface {
	Publisher
	Subscribe(topic, name string, handler Handler) (unsubscribe func())
}

func matches(filter, name string) bool {
	return filter == "" || filter == name
}
