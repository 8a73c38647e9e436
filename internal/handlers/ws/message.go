package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
)

const processTimeout = 10 * time.Second

// ConversationAccess checks that a user may see a conversation.
type ConversationAccess interface {
	Get(ctx context.Context, conversationID, viewerID uint) (*models.Conversation, error)
}

// PresenceTracker is implemented by service.PresenceService.
type PresenceTracker interface {
	SignIn(ctx context.Context, userID uint) (models.UserStatus, error)
	SignOut(ctx context.Context, userID uint) (models.UserStatus, error)
	SetStatus(ctx context.Context, userID uint, status models.UserStatus) (*models.User, error)
	ActivityPing(ctx context.Context, userID uint) (models.UserStatus, error)
	IdleTimeout(ctx context.Context, userID uint) (models.UserStatus, error)
}

// ReadMarker is implemented by service.ReadService.
type ReadMarker interface {
	MarkRead(ctx context.Context, messageID, userID uint) (*models.Message, bool, error)
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	UserID        uint
	Session       *Session
	Hub           *Hub
	Conversations ConversationAccess
	Presence      PresenceTracker
	Reads         ReadMarker
}

// Context bounds the service calls a single client message makes.
func (m *MessageContext) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), processTimeout)
}

// Message interface for all WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	FrameEvent        = "event"
	FrameError        = "error"
	FramePong         = "pong"
	FrameReady        = "ready"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameReadAck      = "read-ack"
	FrameStatus       = "status"
)

// EventFrame carries a bus event to the client.
type EventFrame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type TopicFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

type StatusFrame struct {
	Type   string            `json:"type"`
	UserID uint              `json:"user_id"`
	Status models.UserStatus `json:"status"`
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	if len(jsonBytes) == 0 || string(jsonBytes) == "null" {
		return nil
	}
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(s *Session, code, message, details string) bool {
	return s.Send(ErrorResponse{
		Type:    FrameError,
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// SendServiceError reports a failed message with a code derived from the
// error kind.
func SendServiceError(s *Session, msgType string, err error) bool {
	code := "processing_failed"
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		code = kind.String()
	}
	return SendError(s, code, "Failed to process "+msgType, err.Error())
}
