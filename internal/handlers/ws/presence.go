package ws

import (
	"strings"

	"github.com/noteduco342/chatsync/internal/models"
)

// MessageActivity reports user input. It brings an IDLE user back ONLINE and
// restarts the idle countdown.
type MessageActivity struct{}

func (msg *MessageActivity) GetType() string {
	return "activity"
}

func (msg *MessageActivity) Process(ctx *MessageContext) error {
	c, cancel := ctx.Context()
	defer cancel()

	status, err := ctx.Presence.ActivityPing(c, ctx.UserID)
	if err != nil {
		return err
	}
	ctx.Hub.SyncIdle(ctx.UserID, status)
	ctx.Hub.Touch(ctx.UserID)
	return nil
}

// MessageStatus sets the user's status explicitly.
type MessageStatus struct {
	Status models.UserStatus `json:"status"`
}

func (msg *MessageStatus) GetType() string {
	return "status"
}

func (msg *MessageStatus) Process(ctx *MessageContext) error {
	c, cancel := ctx.Context()
	defer cancel()

	user, err := ctx.Presence.SetStatus(c, ctx.UserID, models.UserStatus(strings.ToUpper(string(msg.Status))))
	if err != nil {
		return err
	}
	ctx.Hub.SyncIdle(ctx.UserID, user.Status)
	ctx.Session.Send(StatusFrame{Type: FrameStatus, UserID: ctx.UserID, Status: user.Status})
	return nil
}
