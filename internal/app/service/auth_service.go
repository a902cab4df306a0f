package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"code_duel/internal/common"
	"code_duel/internal/common/security"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	db          *sql.DB // nil with in-memory storage
}

func NewAuthService(db *sql.DB, userRepo repository.UserRepository, profileRepo repository.ProfileRepository) *AuthService {
	return &AuthService{userRepo: userRepo, profileRepo: profileRepo, db: db}
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	LoginField string `json:"login_field"` // Can be username or email
	Password   string `json:"password"`
}

// AuthResponse carries the player's duel profile next to the token so the
// client can show rating and record without another request.
type AuthResponse struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
	Token   string         `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}
	if !strings.Contains(req.Email, "@") || len(req.Password) < 6 {
		return nil, common.Errorf("invalid email or password shorter than 6 characters: %w", common.ErrValidation)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser, // Default role
	}

	// Every player starts with a profile at the default rating.
	profile := model.NewProfile(user.ID, user.Username)
	err = repository.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err // may be common.ErrConflict
		}
		return s.profileRepo.Create(ctx, tx, profile)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	logger.L().Info("user_signed_up", zap.String("user_id", user.ID), zap.String("username", user.Username))

	token, err := security.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Profile: profile, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.LoginField == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	var user *model.User
	var err error

	// Try finding by email first, then by username
	user, err = s.userRepo.FindByEmail(ctx, req.LoginField)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			user, err = s.userRepo.FindByUsername(ctx, req.LoginField)
		}
	}

	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	token, err := security.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""

	// A missing profile is recreated by the first finished match; login still succeeds.
	profile, err := s.profileRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		logger.L().Warn("login_profile_missing", zap.String("user_id", user.ID), zap.Error(err))
		profile = nil
	}
	return &AuthResponse{User: user, Profile: profile, Token: token}, nil
}
