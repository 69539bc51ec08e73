package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/auth"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/models"
	"github.com/usethreadkit/threadkit/internal/pagetree"
)

// UserService implements profile read/update, blocking, and account
// erasure.
type UserService struct {
	keeper  *index.Keeper
	tokens  *auth.Service
	treeMut *pagetree.Engine
}

func NewUserService(keeper *index.Keeper, tokens *auth.Service, engine *pagetree.Engine) *UserService {
	return &UserService{keeper: keeper, tokens: tokens, treeMut: engine}
}

// Get loads a user's public profile by id.
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.keeper.GetUser(ctx, userID)
}

// UpdateProfile patches the mutable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, name, avatarURL string, socialLinks []string) error {
	if name == "" {
		return apperr.BadRequest("name is required")
	}
	return s.keeper.UpdateProfile(ctx, userID, name, avatarURL, socialLinks)
}

// Block/Unblock manage a user's personal block list.
func (s *UserService) Block(ctx context.Context, userID, targetID uuid.UUID) error {
	if userID == targetID {
		return apperr.BadRequest("cannot block yourself")
	}
	return s.keeper.Block(ctx, userID, targetID)
}

func (s *UserService) Unblock(ctx context.Context, userID, targetID uuid.UUID) error {
	return s.keeper.Unblock(ctx, userID, targetID)
}

// DeleteAccount performs GDPR account erasure: tombstones authored
// comments, reverses cast votes, scrubs every identity index, removes the
// user from siteID's role sets, then revokes the requesting session so the
// bearer token stops working immediately.
func (s *UserService) DeleteAccount(ctx context.Context, siteID, userID uuid.UUID, sessionID string) (index.GDPRResult, error) {
	user, err := s.keeper.GetUser(ctx, userID)
	if err != nil {
		return index.GDPRResult{}, err
	}

	result, err := s.keeper.DeleteUser(ctx, siteID, userID, user, s.treeMut, s.keeper)
	if err != nil {
		return index.GDPRResult{}, err
	}

	if sessionID != "" {
		if err := s.tokens.Revoke(ctx, sessionID); err != nil {
			return result, err
		}
	}
	return result, nil
}
