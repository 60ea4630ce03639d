package service

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// ============================================
// Access Guard
// ============================================

// AccessService answers role questions through the directory. It keeps no state.
type AccessService interface {
	Authorize(ctx context.Context, userID string, roles ...types.Role) (*Identity, error)
	// AuthorizeTeam additionally requires membership of teamID, except for master admins.
	AuthorizeTeam(ctx context.Context, userID, teamID string, roles ...types.Role) (*Identity, error)
	CanGrant(issuer, invitee types.Role) bool
}

type accessService struct {
	directory DirectoryService
}

func NewAccessService(directory DirectoryService) AccessService {
	return &accessService{directory: directory}
}

func (s *accessService) Authorize(ctx context.Context, userID string, roles ...types.Role) (*Identity, error) {
	return s.AuthorizeTeam(ctx, userID, "", roles...)
}

func (s *accessService) AuthorizeTeam(ctx context.Context, userID, teamID string, roles ...types.Role) (*Identity, error) {
	id, err := s.directory.Lookup(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAuthorization
	}
	if err != nil {
		return nil, err
	}
	if err := authorizeIdentity(id, teamID, roles...); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *accessService) CanGrant(issuer, invitee types.Role) bool {
	return types.CanGrant(issuer, invitee)
}

// authorizeIdentity checks role membership and, when teamID is set, team scope.
func authorizeIdentity(id *Identity, teamID string, roles ...types.Role) error {
	if !types.HasAnyRole(id.Role, roles...) {
		return ErrAuthorization
	}
	if teamID != "" && id.Role != types.RoleMasterAdmin && id.TeamID != teamID {
		return ErrAuthorization
	}
	return nil
}
