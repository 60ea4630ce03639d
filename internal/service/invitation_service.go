package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/email"
	"github.com/Marga-Ghale/teamfund-backend/internal/logger"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

const (
	inviteTokenBytes    = 32
	tokenCreateAttempts = 3
	inviteTTL           = 7 * 24 * time.Hour
)

type IssueInviteInput struct {
	Email    string
	Role     types.Role
	TeamID   string
	IssuerID string
}

// IssuedInvite carries the shareable redemption link alongside the invite.
type IssuedInvite struct {
	Invite *repository.Invite
	Link   string
}

type AccountDetails struct {
	Name     string
	Password string
}

type Redemption struct {
	User        *repository.User
	Membership  *repository.TeamMembership
	AccessToken string
}

// InvitePreview is what the join page may show before redemption.
type InvitePreview struct {
	TeamName  string
	Role      types.Role
	Email     string
	Status    types.InviteStatus
	ExpiresAt time.Time
	Expired   bool
}

// ============================================
// Invitation Service
// ============================================

type InvitationService interface {
	IssueInvite(ctx context.Context, in IssueInviteInput) (*IssuedInvite, error)
	RedeemInvite(ctx context.Context, token string, details AccountDetails) (*Redemption, error)
	RevokeInvite(ctx context.Context, inviteID, issuerID string) error

	PreviewInvite(ctx context.Context, token string) (*InvitePreview, error)
	ListTeamInvites(ctx context.Context, teamID, actorID string) ([]*repository.Invite, error)
	ResendInvite(ctx context.Context, inviteID, actorID string) (*IssuedInvite, error)
}

type invitationService struct {
	repos     *repository.Repositories
	directory DirectoryService
	access    AccessService
	auth      AuthService
	mailer    Mailer
	notifier  Notifier
	cfg       *config.Config
	now       Clock
	log       *zap.Logger
}

func NewInvitationService(
	repos *repository.Repositories,
	directory DirectoryService,
	access AccessService,
	auth AuthService,
	mailer Mailer,
	notifier Notifier,
	cfg *config.Config,
	now Clock,
	log *zap.Logger,
) InvitationService {
	return &invitationService{
		repos:     repos,
		directory: directory,
		access:    access,
		auth:      auth,
		mailer:    mailer,
		notifier:  notifier,
		cfg:       cfg,
		now:       now,
		log:       log,
	}
}

func (s *invitationService) IssueInvite(ctx context.Context, in IssueInviteInput) (*IssuedInvite, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, ErrInvalidInput
	}
	inviteeEmail := strings.ToLower(addr.Address)

	issuer, err := s.access.AuthorizeTeam(ctx, in.IssuerID, in.TeamID, types.StaffRoles...)
	if err != nil {
		return nil, err
	}
	if !s.access.CanGrant(issuer.Role, in.Role) {
		return nil, ErrAuthorization
	}

	team, err := s.repos.TeamRepo.FindByID(ctx, in.TeamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, ErrNotFound
	}

	existing, err := s.repos.UserRepo.FindByEmail(ctx, inviteeEmail)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	now := s.now()
	invite := &repository.Invite{
		Email:     inviteeEmail,
		Role:      in.Role,
		TeamID:    team.ID,
		SentBy:    issuer.UserID,
		Status:    types.InviteStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(inviteTTL),
	}

	for attempt := 1; ; attempt++ {
		invite.ID = ""
		invite.Token, err = newInviteToken()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		err = s.repos.InvitationRepo.Create(ctx, invite)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == tokenCreateAttempts {
			return nil, fmt.Errorf("create invite: %w", err)
		}
	}

	s.log.Info("invite issued",
		zap.String("invite_id", invite.ID),
		zap.String("team_id", team.ID),
		zap.String("role", string(invite.Role)),
		zap.String("token", logger.RedactToken(invite.Token)),
		zap.String("sent_by", issuer.UserID),
	)

	issued := &IssuedInvite{Invite: invite, Link: s.joinLink(invite.Token)}
	s.sendInviteEmail(ctx, issued, team, issuer)
	return issued, nil
}

func (s *invitationService) RedeemInvite(ctx context.Context, token string, details AccountDetails) (*Redemption, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var (
		invite     *repository.Invite
		user       *repository.User
		membership *repository.TeamMembership
	)
	now := s.now()

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		inv, err := tx.InvitationRepo.FindByTokenForUpdate(ctx, token)
		if err != nil {
			return fmt.Errorf("find invite: %w", err)
		}
		if inv == nil {
			return ErrInvalidToken
		}
		if inv.Status != types.InviteStatusPending {
			return ErrAlreadyRedeemed
		}
		if inv.IsExpired(now) {
			return ErrInviteExpired
		}

		u, m, err := s.directory.CreateMember(ctx, tx, MemberSpec{
			Email:    inv.Email,
			Name:     details.Name,
			Password: details.Password,
			Role:     inv.Role,
			TeamID:   inv.TeamID,
			InviteID: inv.ID,
		})
		if err != nil {
			return err
		}

		ok, err := tx.InvitationRepo.MarkAccepted(ctx, inv.ID, u.ID, now)
		if err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}
		if !ok {
			return ErrAlreadyRedeemed
		}
		invite, user, membership = inv, u, m
		return nil
	})
	if err != nil {
		s.log.Info("invite redemption refused",
			zap.String("token", logger.RedactToken(token)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("invite redeemed",
		zap.String("invite_id", invite.ID),
		zap.String("user_id", user.ID),
		zap.String("team_id", membership.TeamID),
		zap.String("role", string(membership.Role)),
	)
	if s.notifier != nil {
		s.notifier.InviteAccepted(invite, user)
	}

	accessToken, err := s.auth.IssueToken(user.ID)
	if err != nil {
		// The account exists; the client can still log in.
		s.log.Error("issue token after redemption", zap.String("user_id", user.ID), zap.Error(err))
	}
	return &Redemption{User: user, Membership: membership, AccessToken: accessToken}, nil
}

func (s *invitationService) RevokeInvite(ctx context.Context, inviteID, issuerID string) error {
	invite, _, err := s.loadManagedInvite(ctx, inviteID, issuerID)
	if err != nil {
		return err
	}
	if invite.Status != types.InviteStatusPending {
		return ErrAlreadyRedeemed
	}

	ok, err := s.repos.InvitationRepo.MarkRevoked(ctx, invite.ID, s.now())
	if err != nil {
		return fmt.Errorf("revoke invite: %w", err)
	}
	if !ok {
		return ErrAlreadyRedeemed
	}
	s.log.Info("invite revoked", zap.String("invite_id", invite.ID), zap.String("by", issuerID))
	return nil
}

func (s *invitationService) PreviewInvite(ctx context.Context, token string) (*InvitePreview, error) {
	invite, err := s.repos.InvitationRepo.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	if invite == nil {
		return nil, ErrInvalidToken
	}
	team, err := s.repos.TeamRepo.FindByID(ctx, invite.TeamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}

	preview := &InvitePreview{
		Role:      invite.Role,
		Email:     maskEmail(invite.Email),
		Status:    invite.Status,
		ExpiresAt: invite.ExpiresAt,
		Expired:   invite.IsExpired(s.now()),
	}
	if team != nil {
		preview.TeamName = team.Name
	}
	return preview, nil
}

func (s *invitationService) ListTeamInvites(ctx context.Context, teamID, actorID string) ([]*repository.Invite, error) {
	if _, err := s.access.AuthorizeTeam(ctx, actorID, teamID, types.StaffRoles...); err != nil {
		return nil, err
	}
	return s.repos.InvitationRepo.ListByTeam(ctx, teamID)
}

func (s *invitationService) ResendInvite(ctx context.Context, inviteID, actorID string) (*IssuedInvite, error) {
	invite, actor, err := s.loadManagedInvite(ctx, inviteID, actorID)
	if err != nil {
		return nil, err
	}
	if invite.Status != types.InviteStatusPending {
		return nil, ErrAlreadyRedeemed
	}
	if invite.IsExpired(s.now()) {
		return nil, ErrInviteExpired
	}

	team, err := s.repos.TeamRepo.FindByID(ctx, invite.TeamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, ErrNotFound
	}

	issued := &IssuedInvite{Invite: invite, Link: s.joinLink(invite.Token)}
	s.sendInviteEmail(ctx, issued, team, actor)
	return issued, nil
}

// loadManagedInvite returns the invite when actor is team staff allowed to
// grant the invite's role.
func (s *invitationService) loadManagedInvite(ctx context.Context, inviteID, actorID string) (*repository.Invite, *Identity, error) {
	invite, err := s.repos.InvitationRepo.FindByID(ctx, inviteID)
	if err != nil {
		return nil, nil, fmt.Errorf("find invite: %w", err)
	}
	if invite == nil {
		return nil, nil, ErrNotFound
	}
	actor, err := s.access.AuthorizeTeam(ctx, actorID, invite.TeamID, types.StaffRoles...)
	if err != nil {
		return nil, nil, err
	}
	if !s.access.CanGrant(actor.Role, invite.Role) {
		return nil, nil, ErrAuthorization
	}
	return invite, actor, nil
}

func (s *invitationService) joinLink(token string) string {
	return s.cfg.FrontendURL + "/join?token=" + url.QueryEscape(token)
}

func (s *invitationService) sendInviteEmail(ctx context.Context, issued *IssuedInvite, team *repository.Team, issuer *Identity) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.SendInvitation(ctx, email.InvitationData{
		To:        issued.Invite.Email,
		TeamName:  team.Name,
		InvitedBy: issuer.Name,
		Role:      string(issued.Invite.Role),
		InviteURL: issued.Link,
		ExpiresAt: issued.Invite.ExpiresAt.Format("Jan 2, 2006"),
	})
	if err != nil {
		s.log.Warn("invitation email failed", zap.String("invite_id", issued.Invite.ID), zap.Error(err))
	}
}

func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func maskEmail(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
