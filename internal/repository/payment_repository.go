package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PaymentRepository tracks checkout sessions opened with the payment processor.
type PaymentRepository interface {
	CreateSession(ctx context.Context, s *CheckoutSession) error
	FindSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	FindOpenSessionByKey(ctx context.Context, key string) (*CheckoutSession, error)
	FindCompletedSessionByKey(ctx context.Context, key string) (*CheckoutSession, error)
	CountSessionsByKey(ctx context.Context, key string) (int, error)
	// CompleteSession moves an open or expired session to completed. It reports
	// false when the session is unknown or already completed, and returns
	// ErrConflict when another session for the same key is already completed.
	CompleteSession(ctx context.Context, sessionID string, at time.Time) (bool, error)
	ExpireOpenSessions(ctx context.Context, createdBefore time.Time) (int64, error)
}

type pgPaymentRepository struct {
	db Querier
}

func NewPaymentRepository(db Querier) PaymentRepository {
	return &pgPaymentRepository{db: db}
}

const sessionColumns = `session_id, idempotency_key, target_type, target_id, amount_cents, payer_user_id, payer_email, redirect_url, status, attempt, created_at, completed_at`

func scanSession(row pgx.Row) (*CheckoutSession, error) {
	s := &CheckoutSession{}
	err := row.Scan(
		&s.SessionID, &s.IdempotencyKey, &s.TargetType, &s.TargetID, &s.AmountCents,
		&s.PayerUserID, &s.PayerEmail, &s.RedirectURL, &s.Status, &s.Attempt,
		&s.CreatedAt, &s.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateSession returns ErrConflict when another open session holds the same key.
func (r *pgPaymentRepository) CreateSession(ctx context.Context, s *CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions
			(session_id, idempotency_key, target_type, target_id, amount_cents,
			 payer_user_id, payer_email, redirect_url, status, attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		s.SessionID, s.IdempotencyKey, s.TargetType, s.TargetID, s.AmountCents,
		s.PayerUserID, s.PayerEmail, s.RedirectURL, s.Status, s.Attempt,
	).Scan(&s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgPaymentRepository) FindSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE session_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *pgPaymentRepository) FindOpenSessionByKey(ctx context.Context, key string) (*CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE idempotency_key = $1 AND status = 'open'`
	return scanSession(r.db.QueryRow(ctx, query, key))
}

func (r *pgPaymentRepository) FindCompletedSessionByKey(ctx context.Context, key string) (*CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE idempotency_key = $1 AND status = 'completed'`
	return scanSession(r.db.QueryRow(ctx, query, key))
}

func (r *pgPaymentRepository) CountSessionsByKey(ctx context.Context, key string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM checkout_sessions WHERE idempotency_key = $1`, key).Scan(&n)
	return n, err
}

func (r *pgPaymentRepository) CompleteSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	query := `
		UPDATE checkout_sessions SET status = 'completed', completed_at = $2
		WHERE session_id = $1 AND status <> 'completed'
	`
	tag, err := r.db.Exec(ctx, query, sessionID, at)
	if isUniqueViolation(err) {
		return false, ErrConflict
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgPaymentRepository) ExpireOpenSessions(ctx context.Context, createdBefore time.Time) (int64, error) {
	query := `UPDATE checkout_sessions SET status = 'expired' WHERE status = 'open' AND created_at < $1`
	tag, err := r.db.Exec(ctx, query, createdBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
