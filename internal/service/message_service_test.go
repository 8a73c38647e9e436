package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/mocks"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSendPublishesMessageAndUnreadUpdates(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")
	_, conv, err := h.groups.CreateGroup(context.Background(), alice.ID, CreateGroupInput{Name: "g", MemberIDs: []uint{bob.ID, carol.ID}})
	require.NoError(t, err)

	msg := h.send(t, conv, alice.ID, "  hello  ")
	require.Equal(t, "hello", msg.Content)
	require.NotEmpty(t, msg.ClientID)
	require.Equal(t, alice.ID, msg.Sender.ID)

	require.Equal(t, []string{
		events.ConversationTopic(conv.ID) + "/" + events.EventNewMessage,
		events.UserTopic(bob.ID) + "/" + events.EventUnreadCountUpdate,
		events.UserTopic(carol.ID) + "/" + events.EventUnreadCountUpdate,
	}, eventNames(h.pub.all()))

	var published models.MessageResponse
	require.NoError(t, h.pub.on(events.ConversationTopic(conv.ID))[0].Decode(&published))
	require.Equal(t, msg.ID, published.ID)
	require.Equal(t, "hello", published.Content)

	var unread events.UnreadCountPayload
	require.NoError(t, h.pub.on(events.UserTopic(bob.ID))[0].Decode(&unread))
	require.Equal(t, events.UnreadCountPayload{ConversationID: conv.ID, MessageID: msg.ID}, unread)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")
	conv := h.direct(t, alice.ID, bob.ID)

	tests := []struct {
		name    string
		input   SendInput
		wantErr error
	}{
		{"empty content", SendInput{ConversationID: conv.ID, SenderID: alice.ID, Content: "   "}, apperr.ErrInvalidArgument},
		{"bad file type", SendInput{ConversationID: conv.ID, SenderID: alice.ID, Files: []FileInput{{URL: "https://cdn.example.com/a", FileType: "ZIP"}}}, apperr.ErrInvalidArgument},
		{"file without url", SendInput{ConversationID: conv.ID, SenderID: alice.ID, Files: []FileInput{{FileType: models.FileImage}}}, apperr.ErrInvalidArgument},
		{"bad client id", SendInput{ConversationID: conv.ID, SenderID: alice.ID, Content: "hi", ClientID: "not-a-uuid"}, apperr.ErrInvalidArgument},
		{"unknown conversation", SendInput{ConversationID: 999, SenderID: alice.ID, Content: "hi"}, apperr.ErrNotFound},
		{"not a participant", SendInput{ConversationID: conv.ID, SenderID: carol.ID, Content: "hi"}, apperr.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.messages.Send(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	require.Empty(t, h.pub.all())
}

func TestSendWithFilesOnly(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)

	msg, err := h.messages.Send(context.Background(), SendInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Files: []FileInput{
			{URL: "https://cdn.example.com/attachments/1/a.jpg", Name: "a.jpg", FileType: models.FileImage},
			{URL: "https://cdn.example.com/attachments/1/b.pdf", Name: "b.pdf", FileType: models.FilePDF},
		},
	})
	require.NoError(t, err)
	require.Empty(t, msg.Content)
	require.Len(t, msg.Files, 2)
	require.Equal(t, models.FilePDF, msg.Files[1].FileType)
}

func TestSendWithUploadedAttachment(t *testing.T) {
	for _, base := range []string{"", "/api/media", "https://cdn.example.com/api/media"} {
		t.Run("base "+base, func(t *testing.T) {
			h := newHarness(t)
			alice, bob := h.user(t, "alice"), h.user(t, "bob")
			conv := h.direct(t, alice.ID, bob.ID)
			media := NewMediaService(newMemoryStore(), base, 0)

			res, err := media.Upload(context.Background(), alice.ID, "notes.txt", strings.NewReader("meeting notes\n"))
			require.NoError(t, err)

			msg, err := h.messages.Send(context.Background(), SendInput{
				ConversationID: conv.ID,
				SenderID:       alice.ID,
				Files:          []FileInput{{URL: res.URL, Name: res.Name, FileType: res.FileType}},
			})
			require.NoError(t, err)
			require.Len(t, msg.Files, 1)
			require.Equal(t, res.URL, msg.Files[0].URL)
		})
	}
}

func TestConcurrentSendsPublishInCommitOrder(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(sender uint) {
			defer wg.Done()
			_, err := h.messages.Send(context.Background(), SendInput{ConversationID: conv.ID, SenderID: sender, Content: "hi"})
			assert.NoError(t, err)
		}([]uint{alice.ID, bob.ID}[i%2])
	}
	wg.Wait()

	published := h.pub.on(events.ConversationTopic(conv.ID))
	require.Len(t, published, 20)
	var last uint
	for _, evt := range published {
		var msg models.MessageResponse
		require.NoError(t, evt.Decode(&msg))
		require.Greater(t, msg.ID, last, "new-message events out of commit order")
		last = msg.ID
	}
}

func TestSendLimitsContentLength(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)
	svc := NewMessageService(h.msgRepo, h.convRepo, nil, h.pub, 5)

	msg, err := svc.Send(context.Background(), SendInput{ConversationID: conv.ID, SenderID: alice.ID, Content: "héllo world"})
	require.NoError(t, err)
	require.Equal(t, "héllo", msg.Content)
}

func TestSendWithClientIDIsIdempotent(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)
	clientID := uuid.NewString()

	input := SendInput{ConversationID: conv.ID, SenderID: alice.ID, Content: "once", ClientID: clientID}
	first, err := h.messages.Send(context.Background(), input)
	require.NoError(t, err)
	second, err := h.messages.Send(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, h.pub.on(events.ConversationTopic(conv.ID)), 1)

	list, err := h.messages.ListByConversation(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSendSucceedsWhenPublishFails(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)

	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), events.ConversationTopic(conv.ID), events.EventNewMessage, gomock.Any()).
		Return(errors.New("bus down"))
	pub.EXPECT().
		Publish(gomock.Any(), events.UserTopic(bob.ID), events.EventUnreadCountUpdate, gomock.Any()).
		Return(nil)

	svc := NewMessageService(h.msgRepo, h.convRepo, nil, pub, 0)
	msg, err := svc.Send(context.Background(), SendInput{ConversationID: conv.ID, SenderID: alice.ID, Content: "still stored"})
	require.NoError(t, err)

	stored, err := h.msgRepo.FindByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, "still stored", stored.Content)
}

func TestUpdateMessage(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)
	msg := h.send(t, conv, alice.ID, "first draft")
	h.pub.reset()

	_, err := h.messages.Update(context.Background(), msg.ID, bob.ID, "hijack")
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = h.messages.Update(context.Background(), msg.ID, alice.ID, "  ")
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = h.messages.Update(context.Background(), 999, alice.ID, "x")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := h.messages.Update(context.Background(), msg.ID, alice.ID, "final")
	require.NoError(t, err)
	require.Equal(t, "final", updated.Content)
	require.NotNil(t, updated.EditedAt)
	require.Equal(t, []string{events.ConversationTopic(conv.ID) + "/" + events.EventMessageUpdated}, eventNames(h.pub.all()))
}

func TestDeleteMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)
	keep := h.send(t, conv, alice.ID, "keep")
	drop := h.send(t, conv, alice.ID, "drop")
	h.pub.reset()

	require.ErrorIs(t, h.messages.Delete(ctx, drop.ID, bob.ID), apperr.ErrPermissionDenied)
	require.NoError(t, h.messages.Delete(ctx, drop.ID, alice.ID))
	require.ErrorIs(t, h.messages.Delete(ctx, drop.ID, alice.ID), apperr.ErrNotFound)

	require.Equal(t, []string{
		events.ConversationTopic(conv.ID) + "/" + events.EventMessageDeleted,
		events.UserTopic(bob.ID) + "/" + events.EventUnreadCountUpdate,
	}, eventNames(h.pub.all()))

	list, err := h.messages.ListByConversation(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, keep.ID, list[0].ID)

	count, err := h.unread.CountFor(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeletePolicyCanBeWidened(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	conv := h.direct(t, alice.ID, bob.ID)
	msg := h.send(t, conv, alice.ID, "moderated")

	h.messages.SetDeletePolicy(func(_ *models.Message, actorID uint) bool { return actorID == bob.ID })
	require.NoError(t, h.messages.Delete(context.Background(), msg.ID, bob.ID))
}

func TestListByConversationOrderAndAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")
	conv := h.direct(t, alice.ID, bob.ID)

	var sent []string
	for _, text := range []string{"one", "two", "three"} {
		h.send(t, conv, alice.ID, text)
		sent = append(sent, text)
	}

	list, err := h.messages.ListByConversation(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	var got []string
	for _, m := range list {
		got = append(got, m.Content)
	}
	require.Equal(t, strings.Join(sent, ","), strings.Join(got, ","))

	_, err = h.messages.ListByConversation(ctx, conv.ID, carol.ID)
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
}
