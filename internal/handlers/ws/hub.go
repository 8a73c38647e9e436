package ws

import (
	"sync"
	"time"

	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/presence"
	"github.com/rs/zerolog/log"
)

type userEntry struct {
	sessions map[*Session]struct{}
	idle     *presence.IdleTimer
}

// Hub tracks the open sessions of every user. A user is connected while at
// least one session is registered. The idle timer is shared by all sessions
// of a user, so activity on any of them keeps the user ONLINE.
type Hub struct {
	mu     sync.RWMutex
	users  map[uint]*userEntry
	onIdle func(userID uint)
}

// NewHub creates a hub. onIdle runs when a user's idle timer fires.
func NewHub(onIdle func(userID uint)) *Hub {
	return &Hub{
		users:  make(map[uint]*userEntry),
		onIdle: onIdle,
	}
}

// Register adds a session and reports whether it is the user's first.
func (h *Hub) Register(s *Session, idleTimeout time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.users[s.UserID]
	if !ok {
		userID := s.UserID
		entry = &userEntry{
			sessions: make(map[*Session]struct{}),
			idle: presence.NewIdleTimer(idleTimeout, func() {
				if h.onIdle != nil {
					h.onIdle(userID)
				}
			}),
		}
		h.users[s.UserID] = entry
	}
	entry.sessions[s] = struct{}{}

	log.Debug().Uint("user_id", s.UserID).Int("sessions", len(entry.sessions)).Msg("Session registered")
	return !ok
}

// Unregister removes a session and reports whether it was the user's last.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.users[s.UserID]
	if !ok {
		return false
	}
	if _, ok := entry.sessions[s]; !ok {
		return false
	}
	delete(entry.sessions, s)
	log.Debug().Uint("user_id", s.UserID).Int("sessions", len(entry.sessions)).Msg("Session unregistered")
	if len(entry.sessions) > 0 {
		return false
	}
	entry.idle.Stop()
	delete(h.users, s.UserID)
	return true
}

// SyncIdle arms the user's idle timer while ONLINE and disarms it otherwise.
func (h *Hub) SyncIdle(userID uint, status models.UserStatus) {
	idle := h.idleTimer(userID)
	if idle == nil {
		return
	}
	if status == models.StatusOnline {
		idle.Arm()
	} else {
		idle.Disarm()
	}
}

// Touch restarts the user's idle countdown.
func (h *Hub) Touch(userID uint) {
	if idle := h.idleTimer(userID); idle != nil {
		idle.Touch()
	}
}

func (h *Hub) SetIdleTimeout(userID uint, timeout time.Duration) {
	if idle := h.idleTimer(userID); idle != nil {
		idle.SetTimeout(timeout)
	}
}

func (h *Hub) idleTimer(userID uint) *presence.IdleTimer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if entry, ok := h.users[userID]; ok {
		return entry.idle
	}
	return nil
}

// IsOnline checks if a user has an open session
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// SessionCount returns how many sessions a user has open.
func (h *Hub) SessionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if entry, ok := h.users[userID]; ok {
		return len(entry.sessions)
	}
	return 0
}

// GetOnlineUsers returns list of currently connected user IDs
func (h *Hub) GetOnlineUsers() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uint, 0, len(h.users))
	for userID := range h.users {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of open sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, entry := range h.users {
		n += len(entry.sessions)
	}
	return n
}

// CloseAll closes every session. Their handlers unregister them as their read
// loops exit.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Session
	for _, entry := range h.users {
		for s := range entry.sessions {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
}
