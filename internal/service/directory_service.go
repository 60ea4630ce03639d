package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

const minPasswordLength = 8

// Identity is a user's resolved role and team.
// TeamID is empty for master admins, who belong to no team.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   types.Role
	TeamID string
}

// MemberSpec describes an account created through invite redemption.
type MemberSpec struct {
	Email    string
	Name     string
	Password string
	Role     types.Role
	TeamID   string
	InviteID string
}

// ============================================
// Directory Service
// ============================================

type DirectoryService interface {
	Lookup(ctx context.Context, userID string) (*Identity, error)
	// CreateMember writes the user and membership through repos, which the
	// caller binds to its own transaction.
	CreateMember(ctx context.Context, repos *repository.Repositories, spec MemberSpec) (*repository.User, *repository.TeamMembership, error)

	CreateTeam(ctx context.Context, actorID, name string, monthlyDues *decimal.Decimal) (*repository.Team, error)
	GetTeam(ctx context.Context, teamID, actorID string) (*repository.Team, error)
	LinkParent(ctx context.Context, teamID, athleteID, parentID, actorID string) error
	ListRoster(ctx context.Context, teamID, actorID string) ([]*repository.Member, error)
}

type directoryService struct {
	repos *repository.Repositories
	log   *zap.Logger
}

func NewDirectoryService(repos *repository.Repositories, log *zap.Logger) DirectoryService {
	return &directoryService{repos: repos, log: log}
}

func (s *directoryService) Lookup(ctx context.Context, userID string) (*Identity, error) {
	user, err := s.repos.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	id := &Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
	if user.Role == types.RoleMasterAdmin {
		return id, nil
	}

	m, err := s.repos.TeamRepo.FindMembership(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if m != nil {
		id.Role = m.Role
		id.TeamID = m.TeamID
	}
	return id, nil
}

func (s *directoryService) CreateMember(ctx context.Context, repos *repository.Repositories, spec MemberSpec) (*repository.User, *repository.TeamMembership, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" || len(spec.Password) < minPasswordLength {
		return nil, nil, ErrInvalidInput
	}
	if !types.IsInvitableRole(spec.Role) {
		return nil, nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		Email:        spec.Email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         spec.Role,
	}
	if err := repos.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	membership := &repository.TeamMembership{
		UserID: user.ID,
		TeamID: spec.TeamID,
		Role:   spec.Role,
	}
	if spec.InviteID != "" {
		membership.InviteID = &spec.InviteID
	}
	if err := repos.TeamRepo.AddMembership(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrAlreadyRedeemed
		}
		return nil, nil, fmt.Errorf("create membership: %w", err)
	}
	return user, membership, nil
}

func (s *directoryService) CreateTeam(ctx context.Context, actorID, name string, monthlyDues *decimal.Decimal) (*repository.Team, error) {
	actor, err := s.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIdentity(actor, "", types.RoleMasterAdmin); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	team := &repository.Team{Name: name, CreatedBy: &actor.UserID}
	if monthlyDues != nil {
		cents, err := toCents(*monthlyDues)
		if err != nil {
			return nil, err
		}
		team.MonthlyDuesCents = &cents
	}

	if err := s.repos.TeamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	s.log.Info("team created", zap.String("team_id", team.ID), zap.String("by", actor.UserID))
	return team, nil
}

func (s *directoryService) GetTeam(ctx context.Context, teamID, actorID string) (*repository.Team, error) {
	actor, err := s.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIdentity(actor, teamID, types.ValidRoles...); err != nil {
		return nil, err
	}
	team, err := s.repos.TeamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, ErrNotFound
	}
	return team, nil
}

// LinkParent sets or clears (empty parentID) the parent of an athlete.
// Team staff may link anyone on the team; a parent may link themself.
func (s *directoryService) LinkParent(ctx context.Context, teamID, athleteID, parentID, actorID string) error {
	actor, err := s.Lookup(ctx, actorID)
	if err != nil {
		return err
	}
	selfLink := parentID != "" && actor.UserID == parentID && actor.Role == types.RoleParent && actor.TeamID == teamID
	if !selfLink {
		if err := authorizeIdentity(actor, teamID, types.StaffRoles...); err != nil {
			return err
		}
	}

	athlete, err := s.repos.TeamRepo.FindMembership(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("find athlete: %w", err)
	}
	if athlete == nil || athlete.TeamID != teamID || athlete.Role != types.RoleAthlete {
		return ErrNotFound
	}

	var link *string
	if parentID != "" {
		parent, err := s.repos.TeamRepo.FindMembership(ctx, parentID)
		if err != nil {
			return fmt.Errorf("find parent: %w", err)
		}
		if parent == nil || parent.TeamID != teamID || parent.Role != types.RoleParent {
			return ErrNotFound
		}
		link = &parentID
	}

	if err := s.repos.TeamRepo.SetParent(ctx, athleteID, link); err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	s.log.Info("parent link updated",
		zap.String("team_id", teamID),
		zap.String("athlete_id", athleteID),
		zap.String("parent_id", parentID),
	)
	return nil
}

func (s *directoryService) ListRoster(ctx context.Context, teamID, actorID string) ([]*repository.Member, error) {
	actor, err := s.Lookup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIdentity(actor, teamID, types.StaffRoles...); err != nil {
		return nil, err
	}
	return s.repos.TeamRepo.ListMembers(ctx, teamID)
}
