package service

import (
	"context"
	"testing"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/stretchr/testify/require"
)

func lastStatus(t *testing.T, pub *recordingPublisher) events.StatusUpdatePayload {
	t.Helper()
	evts := pub.on(events.PresenceTopic)
	require.NotEmpty(t, evts)
	var payload events.StatusUpdatePayload
	require.NoError(t, evts[len(evts)-1].Decode(&payload))
	return payload
}

func TestPresenceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	steps := []struct {
		name      string
		run       func() (models.UserStatus, error)
		want      models.UserStatus
		announced bool
	}{
		{"sign in", func() (models.UserStatus, error) { return h.presence.SignIn(ctx, alice.ID) }, models.StatusOnline, true},
		{"idle timeout", func() (models.UserStatus, error) { return h.presence.IdleTimeout(ctx, alice.ID) }, models.StatusIdle, true},
		{"second idle timeout", func() (models.UserStatus, error) { return h.presence.IdleTimeout(ctx, alice.ID) }, models.StatusIdle, false},
		{"activity", func() (models.UserStatus, error) { return h.presence.ActivityPing(ctx, alice.ID) }, models.StatusOnline, true},
		{"activity while online", func() (models.UserStatus, error) { return h.presence.ActivityPing(ctx, alice.ID) }, models.StatusOnline, false},
		{"mute", func() (models.UserStatus, error) { return statusOf(h.presence.SetStatus(ctx, alice.ID, models.StatusMute)) }, models.StatusMute, true},
		{"idle timeout while muted", func() (models.UserStatus, error) { return h.presence.IdleTimeout(ctx, alice.ID) }, models.StatusMute, false},
		{"activity while muted", func() (models.UserStatus, error) { return h.presence.ActivityPing(ctx, alice.ID) }, models.StatusMute, false},
		{"sign in while muted", func() (models.UserStatus, error) { return h.presence.SignIn(ctx, alice.ID) }, models.StatusMute, false},
		{"sign out", func() (models.UserStatus, error) { return h.presence.SignOut(ctx, alice.ID) }, models.StatusOffline, true},
	}

	for _, step := range steps {
		h.pub.reset()
		got, err := step.run()
		require.NoError(t, err, step.name)
		require.Equal(t, step.want, got, step.name)

		stored, err := h.userRepo.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, step.want, stored.Status, step.name)

		if step.announced {
			require.Equal(t, events.StatusUpdatePayload{UserID: alice.ID, Status: step.want}, lastStatus(t, h.pub), step.name)
		} else {
			require.Empty(t, h.pub.all(), step.name)
		}
	}

	stored, err := h.userRepo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeen)
}

func TestSignInUsesDefaultStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	muted := models.StatusMute
	_, err := h.users.UpdateSettings(ctx, alice.ID, UpdateSettingsInput{DefaultStatus: &muted})
	require.NoError(t, err)

	status, err := h.presence.SignIn(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMute, status)
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	_, err := h.presence.SignIn(ctx, alice.ID)
	require.NoError(t, err)

	h.pub.reset()
	user, err := h.presence.SetStatus(ctx, alice.ID, models.StatusOnline)
	require.NoError(t, err)
	require.Equal(t, alice.ID, user.ID)
	require.Equal(t, models.StatusOnline, user.Status)
	require.Equal(t, alice.Username, user.Username)
	require.Len(t, h.pub.all(), 1, "explicit status changes are always announced")

	tests := []struct {
		name    string
		status  models.UserStatus
		wantErr error
	}{
		{"offline is not selectable", models.StatusOffline, apperr.ErrInvalidArgument},
		{"unknown status", models.UserStatus("AWAY"), apperr.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.presence.SetStatus(ctx, alice.ID, tt.status)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := h.userRepo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOnline, stored.Status)

	_, err = h.presence.SetStatus(ctx, 999, models.StatusIdle)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRosterAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	_, err := h.presence.SignIn(ctx, bob.ID)
	require.NoError(t, err)

	roster, err := h.presence.Roster(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, bob.ID, roster[0].ID)
	require.Equal(t, models.StatusOnline, roster[0].Status)

	status, err := h.presence.Status(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOffline, status)
}
