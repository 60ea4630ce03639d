package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/email"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

type GenerateDuesInput struct {
	TeamID   string
	Amount   decimal.Decimal
	DueMonth string
	IssuerID string
}

type GenerateDuesResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// ============================================
// Dues Service
// ============================================

type DuesService interface {
	GenerateDues(ctx context.Context, in GenerateDuesInput) (*GenerateDuesResult, error)
	// GenerateScheduledDues bills every team with a monthly amount configured.
	GenerateScheduledDues(ctx context.Context, month string) (*GenerateDuesResult, error)
	ListDuesForUser(ctx context.Context, userID string) ([]*repository.Due, error)
	ListTeamDues(ctx context.Context, teamID, month, actorID string) ([]*repository.Due, error)
	MarkPaid(ctx context.Context, dueID string, method types.PaymentMethod, payerUserID *string) (*repository.Due, error)
	ConfirmManualPayment(ctx context.Context, dueID, actorID string) (*repository.Due, error)
	SendReminders(ctx context.Context, month string) (int, error)
}

type duesService struct {
	repos    *repository.Repositories
	access   AccessService
	notifier Notifier
	mailer   Mailer
	cfg      *config.Config
	now      Clock
	log      *zap.Logger
}

func NewDuesService(
	repos *repository.Repositories,
	access AccessService,
	notifier Notifier,
	mailer Mailer,
	cfg *config.Config,
	now Clock,
	log *zap.Logger,
) DuesService {
	return &duesService{
		repos:    repos,
		access:   access,
		notifier: notifier,
		mailer:   mailer,
		cfg:      cfg,
		now:      now,
		log:      log,
	}
}

func (s *duesService) GenerateDues(ctx context.Context, in GenerateDuesInput) (*GenerateDuesResult, error) {
	cents, err := toCents(in.Amount)
	if err != nil {
		return nil, err
	}
	if !validDueMonth(in.DueMonth) {
		return nil, ErrInvalidInput
	}
	if _, err := s.access.AuthorizeTeam(ctx, in.IssuerID, in.TeamID, types.StaffRoles...); err != nil {
		return nil, err
	}

	team, err := s.repos.TeamRepo.FindByID(ctx, in.TeamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, ErrNotFound
	}

	result, err := s.generateForTeam(ctx, team.ID, cents, in.DueMonth)
	if err != nil {
		return nil, err
	}
	s.log.Info("dues generated",
		zap.String("team_id", team.ID),
		zap.String("month", in.DueMonth),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.String("by", in.IssuerID),
	)
	return result, nil
}

func (s *duesService) GenerateScheduledDues(ctx context.Context, month string) (*GenerateDuesResult, error) {
	if !validDueMonth(month) {
		return nil, ErrInvalidInput
	}
	teams, err := s.repos.TeamRepo.ListWithMonthlyDues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	total := &GenerateDuesResult{}
	var errs []error
	for _, team := range teams {
		res, err := s.generateForTeam(ctx, team.ID, *team.MonthlyDuesCents, month)
		if err != nil {
			s.log.Error("scheduled dues failed", zap.String("team_id", team.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("team %s: %w", team.ID, err))
			continue
		}
		total.Created += res.Created
		total.Skipped += res.Skipped
	}
	return total, errors.Join(errs...)
}

func (s *duesService) generateForTeam(ctx context.Context, teamID string, cents int64, month string) (*GenerateDuesResult, error) {
	athletes, err := s.repos.TeamRepo.ListByRole(ctx, teamID, types.RoleAthlete)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}

	result := &GenerateDuesResult{}
	for _, athlete := range athletes {
		err := s.insertDue(ctx, &repository.Due{
			TeamID:      teamID,
			AthleteID:   athlete.UserID,
			ParentID:    athlete.ParentID,
			AmountCents: cents,
			DueMonth:    month,
		})
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, ErrDuplicateDue):
			result.Skipped++
		default:
			return nil, err
		}
	}
	return result, nil
}

func (s *duesService) insertDue(ctx context.Context, due *repository.Due) error {
	inserted, err := s.repos.DuesRepo.InsertIfAbsent(ctx, due)
	if err != nil {
		return fmt.Errorf("insert due: %w", err)
	}
	if !inserted {
		return ErrDuplicateDue
	}
	return nil
}

func (s *duesService) ListDuesForUser(ctx context.Context, userID string) ([]*repository.Due, error) {
	return s.repos.DuesRepo.ListForUser(ctx, userID)
}

func (s *duesService) ListTeamDues(ctx context.Context, teamID, month, actorID string) ([]*repository.Due, error) {
	if month != "" && !validDueMonth(month) {
		return nil, ErrInvalidInput
	}
	if _, err := s.access.AuthorizeTeam(ctx, actorID, teamID, types.StaffRoles...); err != nil {
		return nil, err
	}
	return s.repos.DuesRepo.ListByTeam(ctx, teamID, month)
}

func (s *duesService) MarkPaid(ctx context.Context, dueID string, method types.PaymentMethod, payerUserID *string) (*repository.Due, error) {
	due, err := settleDue(ctx, s.repos.DuesRepo, dueID, method, payerUserID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("due paid",
		zap.String("due_id", due.ID),
		zap.String("method", string(method)),
	)
	if s.notifier != nil {
		s.notifier.DuePaid(due)
	}
	return due, nil
}

func (s *duesService) ConfirmManualPayment(ctx context.Context, dueID, actorID string) (*repository.Due, error) {
	due, err := s.repos.DuesRepo.FindByID(ctx, dueID)
	if err != nil {
		return nil, fmt.Errorf("find due: %w", err)
	}
	if due == nil {
		return nil, ErrNotFound
	}
	if _, err := s.access.AuthorizeTeam(ctx, actorID, due.TeamID, types.StaffRoles...); err != nil {
		return nil, err
	}
	return s.MarkPaid(ctx, due.ID, types.PaymentManual, &actorID)
}

func (s *duesService) SendReminders(ctx context.Context, month string) (int, error) {
	if s.mailer == nil {
		return 0, nil
	}
	if !validDueMonth(month) {
		return 0, ErrInvalidInput
	}
	dues, err := s.repos.DuesRepo.ListUnpaidForMonth(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("list unpaid dues: %w", err)
	}

	teams := make(map[string]*repository.Team)
	sent := 0
	for _, due := range dues {
		team, ok := teams[due.TeamID]
		if !ok {
			if team, err = s.repos.TeamRepo.FindByID(ctx, due.TeamID); err != nil {
				return sent, fmt.Errorf("find team: %w", err)
			}
			teams[due.TeamID] = team
		}
		athlete, err := s.repos.UserRepo.FindByID(ctx, due.AthleteID)
		if err != nil {
			return sent, fmt.Errorf("find athlete: %w", err)
		}
		if team == nil || athlete == nil {
			continue
		}

		recipients := []*repository.User{athlete}
		if due.ParentID != nil {
			parent, err := s.repos.UserRepo.FindByID(ctx, *due.ParentID)
			if err != nil {
				return sent, fmt.Errorf("find parent: %w", err)
			}
			if parent != nil {
				recipients = append(recipients, parent)
			}
		}

		for _, to := range recipients {
			err := s.mailer.SendDuesReminder(ctx, email.DuesReminderData{
				To:          to.Email,
				Name:        to.Name,
				AthleteName: athlete.Name,
				TeamName:    team.Name,
				DueMonth:    due.DueMonth,
				Amount:      fromCents(due.AmountCents).StringFixed(2),
				DuesURL:     s.cfg.FrontendURL + "/dues",
			})
			if err != nil {
				s.log.Warn("dues reminder failed", zap.String("due_id", due.ID), zap.Error(err))
				continue
			}
			sent++
		}
	}
	return sent, nil
}

// settleDue performs the single unpaid to paid transition shared by manual
// confirmation and gateway reconciliation.
func settleDue(ctx context.Context, dues repository.DuesRepository, dueID string, method types.PaymentMethod, payerUserID *string, at time.Time) (*repository.Due, error) {
	due, err := dues.MarkPaid(ctx, dueID, method, payerUserID, at)
	if err != nil {
		return nil, fmt.Errorf("mark due paid: %w", err)
	}
	if due != nil {
		return due, nil
	}

	existing, err := dues.FindByID(ctx, dueID)
	if err != nil {
		return nil, fmt.Errorf("find due: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyPaid
}
