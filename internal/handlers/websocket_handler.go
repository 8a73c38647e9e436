package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/handlers/ws"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	pingInterval    = 30 * time.Second
	pongTimeout     = 90 * time.Second
	presenceTimeout = 5 * time.Second
)

type WebSocketHandler struct {
	userService         *service.UserService
	presenceService     *service.PresenceService
	conversationService *service.ConversationService
	readService         *service.ReadService
	bus                 events.Bus
	hub                 *ws.Hub
}

func NewWebSocketHandler(
	userService *service.UserService,
	presenceService *service.PresenceService,
	conversationService *service.ConversationService,
	readService *service.ReadService,
	bus events.Bus,
) *WebSocketHandler {
	h := &WebSocketHandler{
		userService:         userService,
		presenceService:     presenceService,
		conversationService: conversationService,
		readService:         readService,
		bus:                 bus,
	}
	h.hub = ws.NewHub(h.onIdle)
	return h
}

// GetHub returns the hub instance
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// Upgrade rejects plain HTTP requests on the websocket route. It runs after
// AuthRequired, so the user id is already in Locals.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := middleware.UserID(c); err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	return c.Next()
}

func (h *WebSocketHandler) onIdle(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if _, err := h.presenceService.IdleTimeout(ctx, userID); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Idle transition failed")
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals(middleware.LocalUserID).(uint)
	if !ok {
		_ = c.Close()
		return
	}

	// Check if client supports gzip compression (via query param or header)
	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"

	idleTimeout := models.DefaultIdleTimeoutMs * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	if user, err := h.userService.GetUserByID(ctx, userID); err == nil {
		idleTimeout = user.IdleTimeout()
	} else {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Falling back to default idle timeout")
	}
	cancel()

	session := ws.NewSession(userID, c, h.bus, h.hub, supportsGzip, ws.DefaultSendBuffer)
	go session.WritePump(pingInterval)

	_ = c.SetReadDeadline(time.Now().Add(pongTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	// Own channel and presence first, so the sign-in below is seen by this
	// session as well.
	session.Subscribe(events.UserTopic(userID))
	session.Subscribe(events.PresenceTopic)
	h.hub.Register(session, idleTimeout)

	defer func() {
		session.Close()
		if h.hub.Unregister(session) {
			ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
			defer cancel()
			if _, err := h.presenceService.SignOut(ctx, userID); err != nil {
				log.Warn().Err(err).Uint("user_id", userID).Msg("Sign out failed")
			}
		}
		log.Info().Uint("user_id", userID).Msg("WebSocket disconnected")
	}()

	ctx, cancel = context.WithTimeout(context.Background(), presenceTimeout)
	status, err := h.presenceService.SignIn(ctx, userID)
	cancel()
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Sign in failed")
		ws.SendServiceError(session, "connect", err)
		return
	}
	h.hub.SyncIdle(userID, status)
	session.Send(ws.StatusFrame{Type: ws.FrameReady, UserID: userID, Status: status})

	log.Info().Uint("user_id", userID).Bool("gzip", supportsGzip).Msg("WebSocket connected")

	mctx := &ws.MessageContext{
		UserID:        userID,
		Session:       session,
		Hub:           h.hub,
		Conversations: h.conversationService,
		Presence:      h.presenceService,
		Reads:         h.readService,
	}

	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Uint("user_id", userID).Msg("WebSocket read ended")
			break
		}

		if messageType == websocket.BinaryMessage {
			decompressed, err := ws.DecompressMessage(messageBytes)
			if err != nil {
				ws.SendError(session, "decompression_failed", "Failed to decompress message", err.Error())
				continue
			}
			messageBytes = decompressed
		}

		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			ws.SendError(session, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		if err := msg.Process(mctx); err != nil {
			log.Debug().Err(err).Uint("user_id", userID).Str("type", msg.GetType()).Msg("WebSocket message failed")
			ws.SendServiceError(session, msg.GetType(), err)
		}
	}
}
