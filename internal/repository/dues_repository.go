package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

type DuesRepository interface {
	// InsertIfAbsent reports false when a due already exists for (athlete, month).
	InsertIfAbsent(ctx context.Context, due *Due) (bool, error)
	FindByID(ctx context.Context, id string) (*Due, error)
	// MarkPaid settles an unpaid due and returns it; nil means no transition happened.
	MarkPaid(ctx context.Context, id string, method types.PaymentMethod, paidBy *string, at time.Time) (*Due, error)
	ListForUser(ctx context.Context, userID string) ([]*Due, error)
	ListByTeam(ctx context.Context, teamID, month string) ([]*Due, error)
	ListUnpaidForMonth(ctx context.Context, month string) ([]*Due, error)
}

type pgDuesRepository struct {
	db Querier
}

func NewDuesRepository(db Querier) DuesRepository {
	return &pgDuesRepository{db: db}
}

const dueColumns = `id, team_id, athlete_id, parent_id, amount_cents, due_month, paid, paid_at, payment_method, paid_by, created_at`

func scanDue(row pgx.Row) (*Due, error) {
	d := &Due{}
	err := row.Scan(
		&d.ID, &d.TeamID, &d.AthleteID, &d.ParentID, &d.AmountCents, &d.DueMonth,
		&d.Paid, &d.PaidAt, &d.PaymentMethod, &d.PaidBy, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *pgDuesRepository) InsertIfAbsent(ctx context.Context, due *Due) (bool, error) {
	if due.ID == "" {
		due.ID = newID()
	}
	query := `
		INSERT INTO dues (id, team_id, athlete_id, parent_id, amount_cents, due_month)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (athlete_id, due_month) DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		due.ID, due.TeamID, due.AthleteID, due.ParentID, due.AmountCents, due.DueMonth,
	).Scan(&due.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *pgDuesRepository) FindByID(ctx context.Context, id string) (*Due, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT ` + dueColumns + ` FROM dues WHERE id = $1`
	return scanDue(r.db.QueryRow(ctx, query, id))
}

func (r *pgDuesRepository) MarkPaid(ctx context.Context, id string, method types.PaymentMethod, paidBy *string, at time.Time) (*Due, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `
		UPDATE dues
		SET paid = TRUE, paid_at = $2, payment_method = $3, paid_by = $4
		WHERE id = $1 AND paid = FALSE
		RETURNING ` + dueColumns
	return scanDue(r.db.QueryRow(ctx, query, id, at, method, paidBy))
}

// ListForUser returns dues where the user is the athlete or the linked parent.
func (r *pgDuesRepository) ListForUser(ctx context.Context, userID string) ([]*Due, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `
		SELECT ` + dueColumns + ` FROM dues
		WHERE athlete_id = $1 OR parent_id = $1
		ORDER BY due_month DESC, created_at
	`
	return r.list(ctx, query, userID)
}

func (r *pgDuesRepository) ListByTeam(ctx context.Context, teamID, month string) ([]*Due, error) {
	if !validID(teamID) {
		return nil, nil
	}
	if month == "" {
		query := `SELECT ` + dueColumns + ` FROM dues WHERE team_id = $1 ORDER BY due_month DESC, created_at`
		return r.list(ctx, query, teamID)
	}
	query := `SELECT ` + dueColumns + ` FROM dues WHERE team_id = $1 AND due_month = $2 ORDER BY created_at`
	return r.list(ctx, query, teamID, month)
}

func (r *pgDuesRepository) ListUnpaidForMonth(ctx context.Context, month string) ([]*Due, error) {
	query := `SELECT ` + dueColumns + ` FROM dues WHERE due_month = $1 AND paid = FALSE ORDER BY team_id, created_at`
	return r.list(ctx, query, month)
}

func (r *pgDuesRepository) list(ctx context.Context, query string, args ...any) ([]*Due, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dues []*Due
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		dues = append(dues, d)
	}
	return dues, rows.Err()
}
