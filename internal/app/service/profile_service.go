package service

import (
	"context"
	"unicode/utf8"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepo.FindByUserID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of edit to the user's profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, edit model.ProfileEdit) (*model.Profile, error) {
	if edit.Bio != nil && utf8.RuneCountInString(*edit.Bio) > model.MaxBioLength {
		return nil, common.Errorf("bio longer than %d characters: %w", model.MaxBioLength, common.ErrValidation)
	}
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Edit(edit)
	if err := s.profileRepo.Update(ctx, nil, profile); err != nil {
		return nil, common.Errorf("failed to update profile: %w", err)
	}
	logger.L().Info("profile_updated", zap.String("user_id", userID))
	return profile, nil
}

// Leaderboard ranks the top profiles; limit falls back to 50 and is capped at 100.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	profiles, err := s.profileRepo.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	return model.RankProfiles(profiles), nil
}
