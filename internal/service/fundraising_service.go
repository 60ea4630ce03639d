package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

type FundraisingService interface {
	CreateEvent(ctx context.Context, teamID, actorID, name string, ticketPrice decimal.Decimal) (*repository.Event, error)
	CreateFundraiser(ctx context.Context, teamID, actorID, name string, goal decimal.Decimal) (*repository.Fundraiser, error)
	GetFundraiser(ctx context.Context, id string) (*repository.Fundraiser, error)
	ListTickets(ctx context.Context, userID string) ([]*repository.Ticket, error)
}

type fundraisingService struct {
	repos  *repository.Repositories
	access AccessService
	log    *zap.Logger
}

func NewFundraisingService(repos *repository.Repositories, access AccessService, log *zap.Logger) FundraisingService {
	return &fundraisingService{repos: repos, access: access, log: log}
}

func (s *fundraisingService) CreateEvent(ctx context.Context, teamID, actorID, name string, ticketPrice decimal.Decimal) (*repository.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	cents, err := toCents(ticketPrice)
	if err != nil {
		return nil, err
	}
	actor, err := s.access.AuthorizeTeam(ctx, actorID, teamID, types.StaffRoles...)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}

	event := &repository.Event{
		TeamID:           teamID,
		Name:             name,
		TicketPriceCents: cents,
		CreatedBy:        actor.UserID,
	}
	if err := s.repos.FundraisingRepo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created", zap.String("event_id", event.ID), zap.String("team_id", teamID))
	return event, nil
}

func (s *fundraisingService) CreateFundraiser(ctx context.Context, teamID, actorID, name string, goal decimal.Decimal) (*repository.Fundraiser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	cents, err := toCents(goal)
	if err != nil {
		return nil, err
	}
	actor, err := s.access.AuthorizeTeam(ctx, actorID, teamID, types.StaffRoles...)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}

	f := &repository.Fundraiser{
		TeamID:    teamID,
		Name:      name,
		GoalCents: cents,
		CreatedBy: actor.UserID,
	}
	if err := s.repos.FundraisingRepo.CreateFundraiser(ctx, f); err != nil {
		return nil, fmt.Errorf("create fundraiser: %w", err)
	}
	s.log.Info("fundraiser created", zap.String("fundraiser_id", f.ID), zap.String("team_id", teamID))
	return f, nil
}

func (s *fundraisingService) GetFundraiser(ctx context.Context, id string) (*repository.Fundraiser, error) {
	f, err := s.repos.FundraisingRepo.FindFundraiser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find fundraiser: %w", err)
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *fundraisingService) ListTickets(ctx context.Context, userID string) ([]*repository.Ticket, error) {
	return s.repos.FundraisingRepo.ListTicketsByPurchaser(ctx, userID)
}

func (s *fundraisingService) requireTeam(ctx context.Context, teamID string) error {
	team, err := s.repos.TeamRepo.FindByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return ErrNotFound
	}
	return nil
}
