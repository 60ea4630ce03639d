package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFunc runs fn against repositories bound to a single transaction.
type TxFunc func(ctx context.Context, fn func(*Repositories) error) error

type Repositories struct {
	UserRepo        UserRepository
	TeamRepo        TeamRepository
	InvitationRepo  InvitationRepository
	DuesRepo        DuesRepository
	PaymentRepo     PaymentRepository
	FundraisingRepo FundraisingRepository

	tx TxFunc
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	repos := bind(pool)
	repos.tx = func(ctx context.Context, fn func(*Repositories) error) error {
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return fn(bind(tx))
		})
	}
	return repos
}

func bind(q Querier) *Repositories {
	return &Repositories{
		UserRepo:        NewUserRepository(q),
		TeamRepo:        NewTeamRepository(q),
		InvitationRepo:  NewInvitationRepository(q),
		DuesRepo:        NewDuesRepository(q),
		PaymentRepo:     NewPaymentRepository(q),
		FundraisingRepo: NewFundraisingRepository(q),
	}
}

// WithTx returns a copy of r whose Transaction runs through tx.
func (r *Repositories) WithTx(tx TxFunc) *Repositories {
	c := *r
	c.tx = tx
	return &c
}

// Transaction commits when fn returns nil and rolls back otherwise.
// Repositories assembled without a transaction runner (tests) call fn directly.
func (r *Repositories) Transaction(ctx context.Context, fn func(*Repositories) error) error {
	if r.tx == nil {
		return fn(r)
	}
	return r.tx(ctx, fn)
}
