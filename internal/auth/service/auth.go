package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	autherrors "ecovolt/internal/auth/errors"
	"ecovolt/internal/auth/repository"
	"ecovolt/pkg/config"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, email, password string) (*AuthResponse, error)
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*model.Principal, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
}

type authService struct {
	repo       repository.UserRepository
	cfg        *config.Config
	tokens     *tokenSigner
	bcryptCost int
	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
}

func NewAuthService(repo repository.UserRepository, cfg *config.Config) AuthService {
	return newAuthService(repo, cfg, bcrypt.DefaultCost)
}

func newAuthService(repo repository.UserRepository, cfg *config.Config, cost int) *authService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("ecovolt-dummy-password"), cost)
	return &authService{
		repo: repo,
		cfg:  cfg,
		tokens: &tokenSigner{
			secret: []byte(cfg.JWTSecret),
			ttl:    cfg.JWTTTL,
			now:    time.Now,
		},
		bcryptCost: cost,
		dummyHash:  dummy,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, autherrors.ErrEmailTaken) {
			return nil, apperrors.New(apperrors.CodeAlreadyExists, "Email is already registered", http.StatusBadRequest)
		}
		s.cfg.Log.Error("Failed to register user", "email", email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered", "user_id", user.ID)
	return s.respond(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, apperrors.Unauthorized(autherrors.ErrInvalidCredentials.Error())
		}
		s.cfg.Log.Error("Failed to look up user", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.cfg.Log.Info("Login rejected", "user_id", user.ID)
		return nil, apperrors.Unauthorized(autherrors.ErrInvalidCredentials.Error())
	}

	return s.respond(user)
}

func (s *authService) ValidateToken(_ context.Context, token string) (*model.Principal, error) {
	claims, err := s.tokens.parse(token)
	if err != nil {
		return nil, apperrors.Wrap(autherrors.ErrInvalidToken, apperrors.CodeUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
	}
	return &model.Principal{UserID: claims.Subject, Email: claims.Email}, nil
}

func (s *authService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithID("User", userID)
		}
		return nil, apperrors.Internal("Failed to load profile", err)
	}
	return user, nil
}

func (s *authService) respond(user *model.User) (*AuthResponse, error) {
	token, expires, err := s.tokens.sign(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}
	return &AuthResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      NewUserResponse(user),
	}, nil
}

func NewUserResponse(user *model.User) UserResponse {
	return UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}
}
