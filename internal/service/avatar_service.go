package service

import (
	"context"
	"errors"
	"io"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AvatarService stores profile pictures through the attachment pipeline.
type AvatarService struct {
	userRepo repository.UserRepositoryInterface
	media    *MediaService
}

func NewAvatarService(userRepo repository.UserRepositoryInterface, media *MediaService) *AvatarService {
	return &AvatarService{userRepo: userRepo, media: media}
}

// UploadAvatar stores an image and points the user's avatar at it.
func (s *AvatarService) UploadAvatar(ctx context.Context, userID uint, name string, r io.Reader) (*models.User, error) {
	user, err := s.findUser(ctx, "upload avatar", userID)
	if err != nil {
		return nil, err
	}

	res, err := s.media.Upload(ctx, userID, name, r)
	if err != nil {
		return nil, err
	}
	if res.FileType != models.FileImage {
		return nil, apperr.InvalidArgument("upload avatar", "avatar must be an image, got %s", res.FileType)
	}

	previous := user.Avatar
	user.Avatar = res.URL
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, apperr.Wrap("upload avatar", err)
	}
	s.removeObject(ctx, userID, previous)
	return s.findUser(ctx, "upload avatar", userID)
}

// DeleteAvatar clears the avatar reference and removes the stored image.
func (s *AvatarService) DeleteAvatar(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.findUser(ctx, "delete avatar", userID)
	if err != nil {
		return nil, err
	}
	previous := user.Avatar
	user.Avatar = ""
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, apperr.Wrap("delete avatar", err)
	}
	s.removeObject(ctx, userID, previous)
	return s.findUser(ctx, "delete avatar", userID)
}

// removeObject is best effort: the user row already stopped referencing it.
func (s *AvatarService) removeObject(ctx context.Context, userID uint, url string) {
	if err := s.media.Remove(ctx, userID, url); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to remove old avatar")
	}
}

func (s *AvatarService) findUser(ctx context.Context, op string, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "user %d not found", userID)
		}
		return nil, apperr.Wrap(op, err)
	}
	return user, nil
}
