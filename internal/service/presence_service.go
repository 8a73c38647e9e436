package service

import (
	"context"
	"errors"
	"time"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/cache"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/presence"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PresenceService applies presence transitions and announces them on the
// presence topic. Transitions of one user are serialized inside the process;
// concurrent writers on other instances resolve by last write wins.
type PresenceService struct {
	userRepo  repository.UserRepositoryInterface
	cache     *cache.UserCache
	publisher events.Publisher

	locks keyedLocks
	now   func() time.Time
}

func NewPresenceService(userRepo repository.UserRepositoryInterface, userCache *cache.UserCache, publisher events.Publisher) *PresenceService {
	return &PresenceService{
		userRepo:  userRepo,
		cache:     userCache,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *PresenceService) SignIn(ctx context.Context, userID uint) (models.UserStatus, error) {
	return statusOf(s.apply(ctx, userID, presence.Input{Trigger: presence.SignIn}, false))
}

func (s *PresenceService) SignOut(ctx context.Context, userID uint) (models.UserStatus, error) {
	return statusOf(s.apply(ctx, userID, presence.Input{Trigger: presence.SignOut}, false))
}

// SetStatus always persists and announces, even when the status is unchanged.
// It returns the user as stored after the change.
func (s *PresenceService) SetStatus(ctx context.Context, userID uint, status models.UserStatus) (*models.User, error) {
	return s.apply(ctx, userID, presence.Input{Trigger: presence.SetStatus, Requested: status}, true)
}

// ActivityPing wakes an IDLE user. Other statuses are left alone.
func (s *PresenceService) ActivityPing(ctx context.Context, userID uint) (models.UserStatus, error) {
	return statusOf(s.apply(ctx, userID, presence.Input{Trigger: presence.Activity}, false))
}

func (s *PresenceService) IdleTimeout(ctx context.Context, userID uint) (models.UserStatus, error) {
	return statusOf(s.apply(ctx, userID, presence.Input{Trigger: presence.IdleTimeout}, false))
}

func statusOf(user *models.User, err error) (models.UserStatus, error) {
	if user == nil {
		return "", err
	}
	return user.Status, err
}

// Status reads the cached status and falls back to the database.
func (s *PresenceService) Status(ctx context.Context, userID uint) (models.UserStatus, error) {
	if status, ok := s.cache.GetStatus(userID); ok {
		return status, nil
	}
	user, err := s.loadUser(ctx, "status", userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// Roster lists every other user with their current status. Statuses held in
// the presence cache take precedence over the stored column.
func (s *PresenceService) Roster(ctx context.Context, viewerID uint) ([]models.User, error) {
	users, err := s.userRepo.ListExcluding(ctx, viewerID)
	if err != nil {
		return nil, apperr.Wrap("roster", err)
	}

	online, err := s.cache.GetOnlineUsers()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read presence cache")
		return users, nil
	}
	for i := range users {
		if status, ok := online[users[i].ID]; ok {
			users[i].Status = status
		}
	}
	return users, nil
}

func (s *PresenceService) apply(ctx context.Context, userID uint, in presence.Input, always bool) (*models.User, error) {
	op := in.Trigger.String()
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.loadUser(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	in.Default = user.DefaultStatus
	next, err := presence.Next(user.Status, in)
	if err != nil {
		return user, apperr.InvalidArgument(op, "%s", err.Error())
	}
	if next == user.Status && !always {
		return user, nil
	}

	var lastSeen *time.Time
	if in.Trigger == presence.SignIn || in.Trigger == presence.SignOut {
		now := s.now().UTC()
		lastSeen = &now
	}
	if err := s.userRepo.UpdateStatus(ctx, userID, next, lastSeen); err != nil {
		return user, apperr.Wrap(op, err)
	}
	prev := user.Status
	user.Status = next
	if lastSeen != nil {
		user.LastSeen = lastSeen
	}

	if err := s.cache.SetStatus(userID, next); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to cache presence status")
	}
	log.Debug().
		Uint("user_id", userID).
		Str("trigger", op).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("Presence transition")

	publishLogged(ctx, s.publisher, events.PresenceTopic, events.EventStatusUpdate, events.StatusUpdatePayload{
		UserID: userID,
		Status: next,
	})
	return user, nil
}

func (s *PresenceService) loadUser(ctx context.Context, op string, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "user %d not found", userID)
		}
		return nil, apperr.Wrap(op, err)
	}
	return user, nil
}
