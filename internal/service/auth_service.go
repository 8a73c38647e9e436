package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const DefaultTokenTTL = 7 * 24 * time.Hour

type AuthService struct {
	userRepo  repository.UserRepositoryInterface
	presence  *PresenceService
	jwtSecret []byte
	tokenTTL  time.Duration

	defaultIdleTimeoutMs int
}

func NewAuthService(userRepo repository.UserRepositoryInterface, presence *PresenceService, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{
		userRepo:  userRepo,
		presence:  presence,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,

		defaultIdleTimeoutMs: models.DefaultIdleTimeoutMs,
	}
}

// SetDefaultIdleTimeout changes the idle timeout new accounts start with.
func (s *AuthService) SetDefaultIdleTimeout(ms int) {
	if validation.ValidIdleTimeout(ms) {
		s.defaultIdleTimeoutMs = ms
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	input.Email = validation.NormalizeEmail(input.Email)
	input.Username = validation.NormalizeUsername(input.Username)
	if err := validation.Struct(input); err != nil {
		return nil, apperr.InvalidArgument("register", "%s", err.Error())
	}
	if !validation.ValidatePassword(input.Password) {
		return nil, apperr.InvalidArgument("register", "password must be at least %d characters", validation.PasswordMinLength())
	}

	if _, err := s.userRepo.FindByEmail(ctx, input.Email); err == nil {
		return nil, apperr.InvalidArgument("register", "email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap("register", err)
	}
	if _, err := s.userRepo.FindByUsername(ctx, input.Username); err == nil {
		return nil, apperr.InvalidArgument("register", "username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap("register", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:      input.Username,
		Email:         input.Email,
		PasswordHash:  string(hashedPassword),
		FullName:      validation.TrimAndLimit(input.FullName, maxFullNameLength),
		Status:        models.StatusOffline,
		IdleTimeoutMs: s.defaultIdleTimeoutMs,
		DefaultStatus: models.StatusOnline,
	}
	if user.FullName == "" {
		user.FullName = user.Username
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.InvalidArgument("register", "email or username already exists")
		}
		return nil, apperr.Wrap("register", err)
	}

	return s.respond(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, validation.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Wrap("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.respond(user)
}

// Logout ends the user's presence. Open sockets sign in again on their next
// connection.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if s.presence == nil {
		return nil
	}
	_, err := s.presence.SignOut(ctx, userID)
	return err
}

func (s *AuthService) respond(user *models.User) (*AuthResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
