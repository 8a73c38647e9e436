package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type DispatcherConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:   1024,
		MaxAttempts: 3,
		RetryDelay:  200 * time.Millisecond,
	}
}

// Dispatcher decouples publishing from request handling. Publish snapshots the
// payload and queues it; a single worker hands events to the bus in queue
// order, retrying failures with backoff. An event that still fails is logged
// and dropped; data it describes is already committed.
type Dispatcher struct {
	bus  Bus
	cfg  DispatcherConfig
	jobs chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(bus Bus, cfg DispatcherConfig) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	d := &Dispatcher{
		bus:  bus,
		cfg:  cfg,
		jobs: make(chan Event, cfg.QueueSize),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Publish(ctx context.Context, topic, name string, payload interface{}) error {
	evt, err := NewEvent(topic, name, payload)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- evt:
		return nil
	case <-ctx.Done():
		log.Warn().Str("topic", topic).Str("event", name).Err(ctx.Err()).Msg("event dropped, publish queue full")
		return ctx.Err()
	}
}

func (d *Dispatcher) Subscribe(topic, name string, handler Handler) func() {
	return d.bus.Subscribe(topic, name, handler)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for evt := range d.jobs {
		d.deliver(evt)
	}
}

func (d *Dispatcher) deliver(evt Event) {
	delay := d.cfg.RetryDelay
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.bus.Publish(ctx, evt.Topic, evt.Name, evt.Data)
		cancel()
		if err == nil {
			return
		}
		if errors.Is(err, ErrBusClosed) {
			break
		}
		log.Warn().Err(err).
			Str("topic", evt.Topic).
			Str("event", evt.Name).
			Int("attempt", attempt).
			Msg("publish failed")
		if attempt < d.cfg.MaxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	log.Error().Err(err).Str("topic", evt.Topic).Str("event", evt.Name).Msg("event dropped after retries")
}

// Close stops accepting events and waits until queued ones are handed to the
// bus or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
