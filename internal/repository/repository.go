// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("unique constraint violated")

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ============================================
// Models / Entities
// ============================================

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         types.Role
	CreatedAt    time.Time
}

type Team struct {
	ID               string
	Name             string
	MonthlyDuesCents *int64
	CreatedBy        *string
	CreatedAt        time.Time
}

// TeamMembership binds a user to exactly one team and role.
type TeamMembership struct {
	ID        string
	UserID    string
	TeamID    string
	Role      types.Role
	ParentID  *string
	InviteID  *string
	CreatedAt time.Time
}

// Member is a roster row: membership joined with the user record.
type Member struct {
	UserID   string
	Email    string
	Name     string
	Role     types.Role
	ParentID *string
	JoinedAt time.Time
}

type Invite struct {
	ID             string
	Email          string
	Role           types.Role
	TeamID         string
	Token          string
	SentBy         string
	Status         types.InviteStatus
	AcceptedUserID *string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	ResolvedAt     *time.Time
}

// IsExpired reports whether the invite is past its stored expiry at now.
func (i *Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

type Due struct {
	ID            string
	TeamID        string
	AthleteID     string
	ParentID      *string
	AmountCents   int64
	DueMonth      string
	Paid          bool
	PaidAt        *time.Time
	PaymentMethod *types.PaymentMethod
	PaidBy        *string
	CreatedAt     time.Time
}

type Event struct {
	ID               string
	TeamID           string
	Name             string
	TicketPriceCents int64
	CreatedBy        string
	CreatedAt        time.Time
}

type Ticket struct {
	ID             string
	EventID        string
	PurchaserID    *string
	PurchaserEmail string
	AmountCents    int64
	PaymentRef     string
	PaymentKey     string
	CreatedAt      time.Time
}

type Fundraiser struct {
	ID          string
	TeamID      string
	Name        string
	GoalCents   int64
	RaisedCents int64
	CreatedBy   string
	CreatedAt   time.Time
}

type Donation struct {
	ID           string
	FundraiserID string
	DonorID      *string
	DonorEmail   string
	AmountCents  int64
	PaymentRef   string
	PaymentKey   string
	CreatedAt    time.Time
}

type CheckoutSession struct {
	SessionID      string
	IdempotencyKey string
	TargetType     types.TargetType
	TargetID       string
	AmountCents    int64
	PayerUserID    *string
	PayerEmail     string
	RedirectURL    string
	Status         types.SessionStatus
	Attempt        int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// ============================================
// Helpers
// ============================================

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// validID guards uuid columns so malformed ids read as "not found"
// instead of a database cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string {
	return uuid.New().String()
}
