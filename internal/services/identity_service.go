package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

type identityService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewIdentityService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) IdentityService {
	return &identityService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ResolvePrincipal joins a verified identity with its community profile,
// creating the profile on first sight. Name, email and role follow the
// identity provider; tier and onboarding are owned here.
func (s *identityService) ResolvePrincipal(ctx context.Context, identity *models.Identity) (*models.Principal, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrUnauthorized
	}

	role := identity.Role
	if !role.IsValid() {
		role = models.RoleStudent
	}

	profile, err := s.repo.Profile().GetByID(ctx, nil, identity.ID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		now := time.Now().UTC()
		profile = &models.UserProfile{
			ID:        identity.ID,
			FullName:  identity.Name,
			Email:     identity.Email,
			Role:      role,
			Level:     models.LevelBeginner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Profile().Upsert(ctx, nil, profile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		s.logger.Info("Profile created", "user_id", identity.ID, "role", role)

	case err != nil:
		return nil, fmt.Errorf("failed to load profile: %w", err)

	case profile.FullName != identity.Name || profile.Email != identity.Email || profile.Role != role:
		profile.FullName = identity.Name
		profile.Email = identity.Email
		profile.Role = role
		profile.UpdatedAt = time.Now().UTC()
		if err := s.repo.Profile().Upsert(ctx, nil, profile); err != nil {
			s.logger.Warn("Failed to refresh profile", "user_id", identity.ID, "error", err)
		}
	}

	return models.NewPrincipal(profile), nil
}

func (s *identityService) CompleteOnboarding(ctx context.Context, principal *models.Principal) (*models.Principal, error) {
	if err := s.repo.Profile().SetOnboardingCompleted(ctx, nil, principal.ID, true); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound, "complete onboarding")
	}

	s.logger.Info("Onboarding completed", "user_id", principal.ID)

	updated := *principal
	updated.OnboardingCompleted = true
	return &updated, nil
}
