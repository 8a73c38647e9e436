package ws

import "github.com/noteduco342/chatsync/internal/apperr"

// MessageRead marks a message as read by the sender of the frame.
type MessageRead struct {
	MessageID uint `json:"message_id"`
}

type readAck struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
	Changed   bool   `json:"changed"`
}

func (msg *MessageRead) GetType() string {
	return "read"
}

func (msg *MessageRead) Process(ctx *MessageContext) error {
	if msg.MessageID == 0 {
		return apperr.InvalidArgument("read", "message_id is required")
	}
	c, cancel := ctx.Context()
	defer cancel()

	_, changed, err := ctx.Reads.MarkRead(c, msg.MessageID, ctx.UserID)
	if err != nil {
		return err
	}
	ctx.Session.Send(readAck{Type: FrameReadAck, MessageID: msg.MessageID, Changed: changed})
	return nil
}
