package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// ============================================
// Team Repository Interface
// ============================================

// TeamRepository covers teams and the membership roster.
type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	FindByID(ctx context.Context, id string) (*Team, error)
	ListWithMonthlyDues(ctx context.Context) ([]*Team, error)

	// Membership operations
	AddMembership(ctx context.Context, m *TeamMembership) error
	FindMembership(ctx context.Context, userID string) (*TeamMembership, error)
	ListMembers(ctx context.Context, teamID string) ([]*Member, error)
	ListByRole(ctx context.Context, teamID string, role types.Role) ([]*TeamMembership, error)
	SetParent(ctx context.Context, athleteID string, parentID *string) error
}

// ============================================
// PostgreSQL Team Repository Implementation
// ============================================

type pgTeamRepository struct {
	db Querier
}

func NewTeamRepository(db Querier) TeamRepository {
	return &pgTeamRepository{db: db}
}

func (r *pgTeamRepository) Create(ctx context.Context, team *Team) error {
	if team.ID == "" {
		team.ID = newID()
	}
	query := `
		INSERT INTO teams (id, name, monthly_dues_cents, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		team.ID, team.Name, team.MonthlyDuesCents, team.CreatedBy,
	).Scan(&team.CreatedAt)
}

func (r *pgTeamRepository) FindByID(ctx context.Context, id string) (*Team, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT id, name, monthly_dues_cents, created_by, created_at FROM teams WHERE id = $1`
	team := &Team{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.MonthlyDuesCents, &team.CreatedBy, &team.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (r *pgTeamRepository) ListWithMonthlyDues(ctx context.Context) ([]*Team, error) {
	query := `
		SELECT id, name, monthly_dues_cents, created_by, created_at
		FROM teams WHERE monthly_dues_cents IS NOT NULL
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team := &Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.MonthlyDuesCents, &team.CreatedBy, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// AddMembership fails with ErrConflict when the user already belongs to a team
// or the invite was already consumed.
func (r *pgTeamRepository) AddMembership(ctx context.Context, m *TeamMembership) error {
	if m.ID == "" {
		m.ID = newID()
	}
	query := `
		INSERT INTO team_memberships (id, user_id, team_id, role, parent_id, invite_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		m.ID, m.UserID, m.TeamID, m.Role, m.ParentID, m.InviteID,
	).Scan(&m.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgTeamRepository) FindMembership(ctx context.Context, userID string) (*TeamMembership, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `
		SELECT id, user_id, team_id, role, parent_id, invite_id, created_at
		FROM team_memberships WHERE user_id = $1
	`
	m := &TeamMembership{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.ParentID, &m.InviteID, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *pgTeamRepository) ListMembers(ctx context.Context, teamID string) ([]*Member, error) {
	if !validID(teamID) {
		return nil, nil
	}
	query := `
		SELECT u.id, u.email, u.name, m.role, m.parent_id, m.created_at
		FROM team_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY m.role, u.name
	`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.Role, &m.ParentID, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *pgTeamRepository) ListByRole(ctx context.Context, teamID string, role types.Role) ([]*TeamMembership, error) {
	if !validID(teamID) {
		return nil, nil
	}
	query := `
		SELECT id, user_id, team_id, role, parent_id, invite_id, created_at
		FROM team_memberships WHERE team_id = $1 AND role = $2
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, teamID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TeamMembership
	for rows.Next() {
		m := &TeamMembership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.ParentID, &m.InviteID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgTeamRepository) SetParent(ctx context.Context, athleteID string, parentID *string) error {
	query := `UPDATE team_memberships SET parent_id = $2 WHERE user_id = $1 AND role = 'athlete'`
	_, err := r.db.Exec(ctx, query, athleteID, parentID)
	return err
}
