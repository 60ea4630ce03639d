package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type InvitationRepository interface {
	Create(ctx context.Context, invite *Invite) error
	FindByID(ctx context.Context, id string) (*Invite, error)
	FindByToken(ctx context.Context, token string) (*Invite, error)
	// FindByTokenForUpdate locks the row until the surrounding transaction ends.
	FindByTokenForUpdate(ctx context.Context, token string) (*Invite, error)
	ListByTeam(ctx context.Context, teamID string) ([]*Invite, error)
	MarkAccepted(ctx context.Context, id, userID string, at time.Time) (bool, error)
	MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error)
}

type pgInvitationRepository struct {
	db Querier
}

func NewInvitationRepository(db Querier) InvitationRepository {
	return &pgInvitationRepository{db: db}
}

const inviteColumns = `id, email, role, team_id, token, sent_by, status, accepted_user_id, created_at, expires_at, resolved_at`

func scanInvite(row pgx.Row) (*Invite, error) {
	inv := &Invite{}
	err := row.Scan(
		&inv.ID, &inv.Email, &inv.Role, &inv.TeamID, &inv.Token, &inv.SentBy,
		&inv.Status, &inv.AcceptedUserID, &inv.CreatedAt, &inv.ExpiresAt, &inv.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *pgInvitationRepository) Create(ctx context.Context, invite *Invite) error {
	if invite.ID == "" {
		invite.ID = newID()
	}
	query := `
		INSERT INTO invites (id, email, role, team_id, token, sent_by, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		invite.ID, invite.Email, invite.Role, invite.TeamID, invite.Token,
		invite.SentBy, invite.Status, invite.CreatedAt, invite.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgInvitationRepository) FindByID(ctx context.Context, id string) (*Invite, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE id = $1`
	return scanInvite(r.db.QueryRow(ctx, query, id))
}

func (r *pgInvitationRepository) FindByToken(ctx context.Context, token string) (*Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1`
	return scanInvite(r.db.QueryRow(ctx, query, token))
}

func (r *pgInvitationRepository) FindByTokenForUpdate(ctx context.Context, token string) (*Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1 FOR UPDATE`
	return scanInvite(r.db.QueryRow(ctx, query, token))
}

func (r *pgInvitationRepository) ListByTeam(ctx context.Context, teamID string) ([]*Invite, error) {
	if !validID(teamID) {
		return nil, nil
	}
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE team_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// MarkAccepted flips a pending invite to accepted. It reports false when the
// invite was no longer pending.
func (r *pgInvitationRepository) MarkAccepted(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	query := `
		UPDATE invites
		SET status = 'accepted', accepted_user_id = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, userID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgInvitationRepository) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE invites SET status = 'revoked', resolved_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
