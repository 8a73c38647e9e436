package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store     *fakeStore
	userRepo  *MockUserRepository
	groupRepo *MockGroupRepository
	convRepo  *MockConversationRepository
	msgRepo   *MockMessageRepository
	receipts  *MockReceiptRepository
	pub       *recordingPublisher

	conversations *ConversationService
	messages      *MessageService
	reads         *ReadService
	unread        *UnreadService
	presence      *PresenceService
	users         *UserService
	groups        *GroupService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := newFakeStore()
	h := &harness{
		store:     s,
		userRepo:  NewMockUserRepository(s),
		groupRepo: NewMockGroupRepository(s),
		convRepo:  NewMockConversationRepository(s),
		msgRepo:   NewMockMessageRepository(s),
		receipts:  NewMockReceiptRepository(s),
		pub:       &recordingPublisher{},
	}
	h.conversations = NewConversationService(h.convRepo, h.groupRepo)
	h.messages = NewMessageService(h.msgRepo, h.convRepo, nil, h.pub, 0)
	h.reads = NewReadService(h.msgRepo, h.convRepo, h.receipts, nil, h.pub)
	h.unread = NewUnreadService(h.receipts, h.convRepo)
	h.presence = NewPresenceService(h.userRepo, nil, h.pub)
	h.users = NewUserService(h.userRepo, h.pub)
	h.groups = NewGroupService(h.groupRepo, h.userRepo, h.conversations)
	return h
}

func (h *harness) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    fmt.Sprintf("%s@example.com", name),
		FullName: name,
	}
	require.NoError(t, h.userRepo.Create(context.Background(), u))
	return u
}

func (h *harness) direct(t *testing.T, actor uint, others ...uint) *models.Conversation {
	t.Helper()
	conv, _, err := h.conversations.Resolve(context.Background(), ResolveInput{ActorID: actor, ParticipantIDs: others})
	require.NoError(t, err)
	return conv
}

func (h *harness) send(t *testing.T, conv *models.Conversation, sender uint, content string) *models.Message {
	t.Helper()
	msg, err := h.messages.Send(context.Background(), SendInput{
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func eventNames(evts []events.Event) []string {
	names := make([]string, 0, len(evts))
	for _, e := range evts {
		names = append(names, e.Topic+"/"+e.Name)
	}
	return names
}
