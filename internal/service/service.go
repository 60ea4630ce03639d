package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/email"
	"github.com/Marga-Ghale/teamfund-backend/internal/payment"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAmount      = errors.New("amount must be positive with at most two decimal places")
	ErrAuthorization      = errors.New("not authorized for this action")

	// Invite lifecycle
	ErrInvalidToken    = errors.New("invalid token")
	ErrInviteExpired   = errors.New("invite has expired")
	ErrAlreadyRedeemed = errors.New("invite is no longer pending")

	// Dues ledger
	ErrDuplicateDue = errors.New("due already exists for this athlete and month")
	ErrAlreadyPaid  = errors.New("already paid")

	// Payments
	ErrGatewayUnavailable = errors.New("payment gateway unavailable, retry later")
	ErrPaymentRejected    = errors.New("payment gateway rejected the request")
	ErrInvalidSignature   = errors.New("invalid payment event signature")
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// Notifier pushes realtime updates to connected users.
type Notifier interface {
	DuePaid(due *repository.Due)
	InviteAccepted(invite *repository.Invite, user *repository.User)
	DonationReceived(fundraiser *repository.Fundraiser, donation *repository.Donation)
}

// Mailer delivers transactional email.
type Mailer interface {
	SendInvitation(ctx context.Context, data email.InvitationData) error
	SendDuesReminder(ctx context.Context, data email.DuesReminderData) error
}

// EventClaimer deduplicates processor events across instances.
type EventClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth        AuthService
	Directory   DirectoryService
	Access      AccessService
	Invitation  InvitationService
	Dues        DuesService
	Payment     PaymentService
	Fundraising FundraisingService
}

// ServiceDeps contains all dependencies needed to create services.
// Notifier, Mailer and Claims may be nil.
type ServiceDeps struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Processor payment.Processor
	Notifier  Notifier
	Mailer    Mailer
	Claims    EventClaimer
	Clock     Clock
	Logger    *zap.Logger
}

func NewServices(deps *ServiceDeps) *Services {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	auth := NewAuthService(deps.Config, deps.Repos.UserRepo, deps.Clock)
	directory := NewDirectoryService(deps.Repos, deps.Logger)
	access := NewAccessService(directory)
	dues := NewDuesService(deps.Repos, access, deps.Notifier, deps.Mailer, deps.Config, deps.Clock, deps.Logger)

	return &Services{
		Auth:      auth,
		Directory: directory,
		Access:    access,
		Invitation: NewInvitationService(
			deps.Repos,
			directory,
			access,
			auth,
			deps.Mailer,
			deps.Notifier,
			deps.Config,
			deps.Clock,
			deps.Logger,
		),
		Dues: dues,
		Payment: NewPaymentService(
			deps.Repos,
			deps.Processor,
			deps.Claims,
			deps.Notifier,
			deps.Config,
			deps.Clock,
			deps.Logger,
		),
		Fundraising: NewFundraisingService(deps.Repos, access, deps.Logger),
	}
}
