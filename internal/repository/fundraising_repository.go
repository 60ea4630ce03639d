package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// FundraisingRepository covers events, tickets, fundraisers and donations.
type FundraisingRepository interface {
	CreateEvent(ctx context.Context, e *Event) error
	FindEvent(ctx context.Context, id string) (*Event, error)
	CreateFundraiser(ctx context.Context, f *Fundraiser) error
	FindFundraiser(ctx context.Context, id string) (*Fundraiser, error)

	// InsertTicket reports false when a ticket already exists for the payment
	// reference or the payment key.
	InsertTicket(ctx context.Context, t *Ticket) (bool, error)
	ListTicketsByPurchaser(ctx context.Context, userID string) ([]*Ticket, error)
	// InsertDonation records the donation and bumps the fundraiser total once per
	// payment reference and payment key.
	InsertDonation(ctx context.Context, d *Donation) (bool, error)
}

type pgFundraisingRepository struct {
	db Querier
}

func NewFundraisingRepository(db Querier) FundraisingRepository {
	return &pgFundraisingRepository{db: db}
}

func (r *pgFundraisingRepository) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = newID()
	}
	query := `
		INSERT INTO events (id, team_id, name, ticket_price_cents, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, e.ID, e.TeamID, e.Name, e.TicketPriceCents, e.CreatedBy).Scan(&e.CreatedAt)
}

func (r *pgFundraisingRepository) FindEvent(ctx context.Context, id string) (*Event, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT id, team_id, name, ticket_price_cents, created_by, created_at FROM events WHERE id = $1`
	e := &Event{}
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.TeamID, &e.Name, &e.TicketPriceCents, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *pgFundraisingRepository) CreateFundraiser(ctx context.Context, f *Fundraiser) error {
	if f.ID == "" {
		f.ID = newID()
	}
	query := `
		INSERT INTO fundraisers (id, team_id, name, goal_cents, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING raised_cents, created_at
	`
	return r.db.QueryRow(ctx, query, f.ID, f.TeamID, f.Name, f.GoalCents, f.CreatedBy).Scan(&f.RaisedCents, &f.CreatedAt)
}

func (r *pgFundraisingRepository) FindFundraiser(ctx context.Context, id string) (*Fundraiser, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT id, team_id, name, goal_cents, raised_cents, created_by, created_at FROM fundraisers WHERE id = $1`
	f := &Fundraiser{}
	err := r.db.QueryRow(ctx, query, id).Scan(&f.ID, &f.TeamID, &f.Name, &f.GoalCents, &f.RaisedCents, &f.CreatedBy, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *pgFundraisingRepository) InsertTicket(ctx context.Context, t *Ticket) (bool, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	query := `
		INSERT INTO tickets (id, event_id, purchaser_id, purchaser_email, amount_cents, payment_ref, payment_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.EventID, t.PurchaserID, t.PurchaserEmail, t.AmountCents, t.PaymentRef, t.PaymentKey,
	).Scan(&t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *pgFundraisingRepository) ListTicketsByPurchaser(ctx context.Context, userID string) ([]*Ticket, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `
		SELECT id, event_id, purchaser_id, purchaser_email, amount_cents, payment_ref, payment_key, created_at
		FROM tickets WHERE purchaser_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		t := &Ticket{}
		if err := rows.Scan(&t.ID, &t.EventID, &t.PurchaserID, &t.PurchaserEmail, &t.AmountCents, &t.PaymentRef, &t.PaymentKey, &t.CreatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *pgFundraisingRepository) InsertDonation(ctx context.Context, d *Donation) (bool, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	query := `
		INSERT INTO donations (id, fundraiser_id, donor_id, donor_email, amount_cents, payment_ref, payment_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		d.ID, d.FundraiserID, d.DonorID, d.DonorEmail, d.AmountCents, d.PaymentRef, d.PaymentKey,
	).Scan(&d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = r.db.Exec(ctx,
		`UPDATE fundraisers SET raised_cents = raised_cents + $2 WHERE id = $1`,
		d.FundraiserID, d.AmountCents,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}
