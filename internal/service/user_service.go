package service

import (
	"context"
	"errors"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/validation"
	"gorm.io/gorm"
)

const maxFullNameLength = 100

type UserService struct {
	userRepo  repository.UserRepositoryInterface
	publisher events.Publisher
}

func NewUserService(userRepo repository.UserRepositoryInterface, publisher events.Publisher) *UserService {
	return &UserService{userRepo: userRepo, publisher: publisher}
}

// UpdateSettingsInput carries the fields a user may change about themselves.
// Nil fields are left untouched.
type UpdateSettingsInput struct {
	Username      *string            `json:"username" validate:"omitempty,username"`
	FullName      *string            `json:"full_name"`
	IdleTimeoutMs *int               `json:"idle_timeout_ms" validate:"omitempty,gt=0"`
	DefaultStatus *models.UserStatus `json:"default_status" validate:"omitempty,selectable_status"`
}

func (s *UserService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return false, apperr.InvalidArgument("username", "username cannot be empty")
	}

	_, err := s.userRepo.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, apperr.Wrap("username", err)
	}
	return false, nil
}

func (s *UserService) UpdateSettings(ctx context.Context, userID uint, input UpdateSettingsInput) (*models.User, error) {
	if err := validation.Struct(input); err != nil {
		return nil, apperr.InvalidArgument("update settings", "%s", err.Error())
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := validation.NormalizeUsername(*input.Username)
		if username != user.Username {
			available, err := s.IsUsernameAvailable(ctx, username)
			if err != nil {
				return nil, err
			}
			if !available {
				return nil, apperr.InvalidArgument("update settings", "username already taken")
			}
			user.Username = username
		}
	}
	if input.FullName != nil {
		user.FullName = validation.TrimAndLimit(*input.FullName, maxFullNameLength)
	}
	if input.IdleTimeoutMs != nil {
		if !validation.ValidIdleTimeout(*input.IdleTimeoutMs) {
			return nil, apperr.InvalidArgument("update settings", "idle_timeout_ms must be positive")
		}
		user.IdleTimeoutMs = *input.IdleTimeoutMs
	}
	if input.DefaultStatus != nil {
		status := *input.DefaultStatus
		if !validation.ValidSelectableStatus(status) {
			return nil, apperr.InvalidArgument("update settings", "default_status must be ONLINE, IDLE or MUTE")
		}
		user.DefaultStatus = status
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, apperr.Wrap("update settings", err)
	}

	// Open sessions on every instance pick up the new idle timeout from here.
	if input.IdleTimeoutMs != nil || input.DefaultStatus != nil {
		publishLogged(ctx, s.publisher, events.UserTopic(userID), events.EventSettingsUpdate, events.SettingsUpdatePayload{
			IdleTimeoutMs: user.IdleTimeoutMs,
			DefaultStatus: user.DefaultStatus,
		})
	}
	return s.GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", "user %d not found", userID)
		}
		return nil, apperr.Wrap("user", err)
	}
	return user, nil
}

func (s *UserService) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap("users", err)
	}
	return users, nil
}
