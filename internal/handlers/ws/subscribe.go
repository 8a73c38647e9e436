package ws

import (
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/events"
)

// MessageSubscribe asks for the events of a topic.
type MessageSubscribe struct {
	Topic string `json:"topic"`
}

func (msg *MessageSubscribe) GetType() string {
	return "subscribe"
}

func (msg *MessageSubscribe) Process(ctx *MessageContext) error {
	if err := authorizeTopic(ctx, msg.Topic); err != nil {
		return err
	}
	ctx.Session.Subscribe(msg.Topic)
	ctx.Session.Send(TopicFrame{Type: FrameSubscribed, Topic: msg.Topic})
	return nil
}

// authorizeTopic allows the presence channel, the user's own channel and the
// channels of conversations the user participates in.
func authorizeTopic(ctx *MessageContext, topic string) error {
	kind, id := events.ParseTopic(topic)
	switch kind {
	case events.TopicPresence:
		return nil
	case events.TopicUser:
		if id != ctx.UserID {
			return apperr.PermissionDenied("subscribe", "cannot subscribe to %s", topic)
		}
		return nil
	case events.TopicConversation:
		c, cancel := ctx.Context()
		defer cancel()
		if _, err := ctx.Conversations.Get(c, id, ctx.UserID); err != nil {
			return err
		}
		return nil
	}
	return apperr.InvalidArgument("subscribe", "unknown topic %q", topic)
}

type MessageUnsubscribe struct {
	Topic string `json:"topic"`
}

func (msg *MessageUnsubscribe) GetType() string {
	return "unsubscribe"
}

func (msg *MessageUnsubscribe) Process(ctx *MessageContext) error {
	ctx.Session.Unsubscribe(msg.Topic)
	ctx.Session.Send(TopicFrame{Type: FrameUnsubscribed, Topic: msg.Topic})
	return nil
}
