package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/rs/zerolog/log"
)

// Conn is the part of a websocket connection a session writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

const (
	DefaultSendBuffer = 256
	writeWait         = 10 * time.Second
	gzipThreshold     = 512
)

// Session is one websocket connection of a user. All writes go through its
// outbound queue, drained by WritePump, so bus handlers never block on a slow
// client. A client whose queue overflows is disconnected.
type Session struct {
	UserID uint

	conn         Conn
	bus          events.Bus
	hub          *Hub
	supportsGzip bool

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	subsMu sync.Mutex
	subs   map[string]func()
}

func NewSession(userID uint, conn Conn, bus events.Bus, hub *Hub, supportsGzip bool, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Session{
		UserID:       userID,
		conn:         conn,
		bus:          bus,
		hub:          hub,
		supportsGzip: supportsGzip,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		subs:         make(map[string]func()),
	}
}

// Send queues a JSON frame. It reports false when the session is closed or
// its queue is full.
func (s *Session) Send(frame interface{}) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Uint("user_id", s.UserID).Msg("Failed to encode frame")
		return false
	}

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	default:
		log.Warn().Uint("user_id", s.UserID).Msg("Send queue full, dropping session")
		s.Close()
		return false
	}
}

// WritePump writes queued frames and keepalive pings until the session closes.
func (s *Session) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			frameType := websocket.TextMessage
			if s.supportsGzip && len(data) > gzipThreshold {
				if compressed, err := compressData(data); err == nil && len(compressed) < len(data) {
					data = compressed
					frameType = websocket.BinaryMessage
				}
			}
			if err := s.conn.WriteMessage(frameType, data); err != nil {
				log.Debug().Err(err).Uint("user_id", s.UserID).Msg("Write failed, closing session")
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Uint("user_id", s.UserID).Msg("Ping failed, closing session")
				s.Close()
				return
			}
		}
	}
}

// Subscribe forwards every event on topic to the client. Subscribing twice is
// a no-op.
func (s *Session) Subscribe(topic string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.isClosed() {
		return
	}
	if _, ok := s.subs[topic]; ok {
		return
	}
	s.subs[topic] = s.bus.Subscribe(topic, "", s.deliver)
}

func (s *Session) Unsubscribe(topic string) {
	s.subsMu.Lock()
	unsubscribe, ok := s.subs[topic]
	delete(s.subs, topic)
	s.subsMu.Unlock()
	if ok {
		unsubscribe()
	}
}

func (s *Session) Subscribed(topic string) bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	_, ok := s.subs[topic]
	return ok
}

func (s *Session) deliver(evt events.Event) {
	if evt.Topic == events.PresenceTopic && evt.Name == events.EventStatusUpdate && s.hub != nil {
		var p events.StatusUpdatePayload
		if err := evt.Decode(&p); err == nil && p.UserID == s.UserID {
			s.hub.SyncIdle(s.UserID, p.Status)
		}
	}
	if evt.Name == events.EventSettingsUpdate && evt.Topic == events.UserTopic(s.UserID) && s.hub != nil {
		var p events.SettingsUpdatePayload
		if err := evt.Decode(&p); err == nil && p.IdleTimeoutMs > 0 {
			s.hub.SetIdleTimeout(s.UserID, time.Duration(p.IdleTimeoutMs)*time.Millisecond)
		}
	}
	s.Send(EventFrame{
		Type:  FrameEvent,
		Topic: evt.Topic,
		Event: evt.Name,
		Data:  evt.Data,
	})
}

// Close drops every subscription and closes the connection. It is safe to
// call more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.subsMu.Lock()
		subs := s.subs
		s.subs = make(map[string]func())
		s.subsMu.Unlock()
		for _, unsubscribe := range subs {
			unsubscribe()
		}

		_ = s.conn.Close()
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
