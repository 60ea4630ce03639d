package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/payment"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

const (
	eventClaimTTL   = 72 * time.Hour
	eventClaimSpace = "payment:event:"

	// CheckoutSessionTTL is how long the hosted checkout page accepts payment.
	CheckoutSessionTTL = 23 * time.Hour
)

// errKeyAlreadyPaid aborts a completion whose idempotency key was already
// settled by another session.
var errKeyAlreadyPaid = errors.New("idempotency key already paid")

// CheckoutIntent is a request to pay for a due, a ticket or a donation.
type CheckoutIntent struct {
	TargetType  types.TargetType
	TargetID    string
	Amount      decimal.Decimal
	PayerUserID *string
	PayerEmail  string
}

type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Reused      bool   `json:"reused"`
}

// ============================================
// Payment Service
// ============================================

type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, intent CheckoutIntent) (*CheckoutResult, error)
	// HandleCompletion applies a signed processor callback. Redelivery of an
	// already applied payment succeeds without changing state.
	HandleCompletion(ctx context.Context, payload []byte, signature string) error
	ExpireAbandonedSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

type paymentService struct {
	repos     *repository.Repositories
	processor payment.Processor
	claims    EventClaimer
	notifier  Notifier
	cfg       *config.Config
	now       Clock
	log       *zap.Logger
}

func NewPaymentService(
	repos *repository.Repositories,
	processor payment.Processor,
	claims EventClaimer,
	notifier Notifier,
	cfg *config.Config,
	now Clock,
	log *zap.Logger,
) PaymentService {
	if processor == nil {
		processor = payment.Disabled{}
	}
	return &paymentService{
		repos:     repos,
		processor: processor,
		claims:    claims,
		notifier:  notifier,
		cfg:       cfg,
		now:       now,
		log:       log,
	}
}

// IdempotencyKey derives the dedupe key for a checkout intent.
func IdempotencyKey(target types.TargetType, targetID, payer string, amountCents int64) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(target), targetID, payer, strconv.FormatInt(amountCents, 10),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, intent CheckoutIntent) (*CheckoutResult, error) {
	if _, ok := types.ParseTargetType(string(intent.TargetType)); !ok {
		return nil, ErrInvalidInput
	}
	cents, err := toCents(intent.Amount)
	if err != nil {
		return nil, err
	}

	payerEmail, err := s.resolvePayerEmail(ctx, intent)
	if err != nil {
		return nil, err
	}
	description, err := s.validateTarget(ctx, intent.TargetType, intent.TargetID, cents)
	if err != nil {
		return nil, err
	}

	payer := "anon:" + payerEmail
	if intent.PayerUserID != nil {
		payer = *intent.PayerUserID
	}
	key := IdempotencyKey(intent.TargetType, intent.TargetID, payer, cents)

	if done, err := s.repos.PaymentRepo.FindCompletedSessionByKey(ctx, key); err != nil {
		return nil, fmt.Errorf("find completed session: %w", err)
	} else if done != nil {
		return nil, ErrAlreadyPaid
	}

	if open, err := s.repos.PaymentRepo.FindOpenSessionByKey(ctx, key); err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	} else if open != nil {
		return &CheckoutResult{SessionID: open.SessionID, RedirectURL: open.RedirectURL, Reused: true}, nil
	}

	attempts, err := s.repos.PaymentRepo.CountSessionsByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	attempt := attempts + 1

	metadata := map[string]string{
		payment.MetaTargetType:     string(intent.TargetType),
		payment.MetaTargetID:       intent.TargetID,
		payment.MetaIdempotencyKey: key,
	}
	if intent.PayerUserID != nil {
		metadata[payment.MetaPayerUserID] = *intent.PayerUserID
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
	defer cancel()

	sess, err := s.processor.CreateSession(callCtx, payment.SessionRequest{
		ProcessorKey:  key + "-" + strconv.Itoa(attempt),
		Description:   description,
		AmountCents:   cents,
		Currency:      s.cfg.CheckoutCurrency,
		CustomerEmail: payerEmail,
		SuccessURL:    s.cfg.FrontendURL + s.cfg.CheckoutSuccessPath + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.FrontendURL + s.cfg.CheckoutCancelPath,
		Metadata:      metadata,
		ExpiresAt:     s.now().Add(CheckoutSessionTTL),
	})
	if err != nil {
		return nil, s.gatewayError(err, intent)
	}

	record := &repository.CheckoutSession{
		SessionID:      sess.ID,
		IdempotencyKey: key,
		TargetType:     intent.TargetType,
		TargetID:       intent.TargetID,
		AmountCents:    cents,
		PayerUserID:    intent.PayerUserID,
		PayerEmail:     payerEmail,
		RedirectURL:    sess.URL,
		Status:         types.SessionOpen,
		Attempt:        attempt,
	}
	if err := s.repos.PaymentRepo.CreateSession(ctx, record); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("record session: %w", err)
		}
		// A concurrent request opened a session for the same key first.
		open, ferr := s.repos.PaymentRepo.FindOpenSessionByKey(ctx, key)
		if ferr != nil || open == nil {
			return nil, fmt.Errorf("record session: %w", err)
		}
		return &CheckoutResult{SessionID: open.SessionID, RedirectURL: open.RedirectURL, Reused: true}, nil
	}

	s.log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("target_type", string(intent.TargetType)),
		zap.String("target_id", intent.TargetID),
		zap.Int64("amount_cents", cents),
		zap.Int("attempt", attempt),
	)
	return &CheckoutResult{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}

func (s *paymentService) resolvePayerEmail(ctx context.Context, intent CheckoutIntent) (string, error) {
	payerEmail := strings.ToLower(strings.TrimSpace(intent.PayerEmail))
	if intent.PayerUserID != nil {
		user, err := s.repos.UserRepo.FindByID(ctx, *intent.PayerUserID)
		if err != nil {
			return "", fmt.Errorf("find payer: %w", err)
		}
		if user == nil {
			return "", ErrNotFound
		}
		if payerEmail == "" {
			payerEmail = user.Email
		}
	}
	if payerEmail == "" {
		return "", ErrInvalidInput
	}
	return payerEmail, nil
}

// validateTarget checks the payable exists and the amount is acceptable for it,
// returning a line-item description.
func (s *paymentService) validateTarget(ctx context.Context, target types.TargetType, targetID string, cents int64) (string, error) {
	switch target {
	case types.TargetDue:
		due, err := s.repos.DuesRepo.FindByID(ctx, targetID)
		if err != nil {
			return "", fmt.Errorf("find due: %w", err)
		}
		if due == nil {
			return "", ErrNotFound
		}
		if due.Paid {
			return "", ErrAlreadyPaid
		}
		if due.AmountCents != cents {
			return "", ErrInvalidAmount
		}
		return "Team dues " + due.DueMonth, nil

	case types.TargetTicket:
		event, err := s.repos.FundraisingRepo.FindEvent(ctx, targetID)
		if err != nil {
			return "", fmt.Errorf("find event: %w", err)
		}
		if event == nil {
			return "", ErrNotFound
		}
		if event.TicketPriceCents != cents {
			return "", ErrInvalidAmount
		}
		return "Ticket: " + event.Name, nil

	case types.TargetFundraiserDonation:
		f, err := s.repos.FundraisingRepo.FindFundraiser(ctx, targetID)
		if err != nil {
			return "", fmt.Errorf("find fundraiser: %w", err)
		}
		if f == nil {
			return "", ErrNotFound
		}
		return "Donation: " + f.Name, nil
	}
	return "", ErrInvalidInput
}

func (s *paymentService) gatewayError(err error, intent CheckoutIntent) error {
	s.log.Warn("checkout session creation failed",
		zap.String("target_type", string(intent.TargetType)),
		zap.String("target_id", intent.TargetID),
		zap.Error(err),
	)
	if errors.Is(err, payment.ErrRejected) {
		return fmt.Errorf("%w: %v", ErrPaymentRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func (s *paymentService) HandleCompletion(ctx context.Context, payload []byte, signature string) error {
	completion, err := s.processor.ParseCompletion(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		s.log.Warn("rejected payment callback", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if completion == nil {
		return nil
	}

	claimKey := eventClaimSpace + completion.EventID
	if s.claims != nil {
		claimed, err := s.claims.Claim(ctx, claimKey, eventClaimTTL)
		switch {
		case err != nil:
			// The database writes below are idempotent on their own.
			s.log.Warn("event claim unavailable", zap.String("event_id", completion.EventID), zap.Error(err))
		case !claimed:
			s.log.Info("duplicate payment event", zap.String("event_id", completion.EventID))
			return nil
		}
	}

	if err := s.applyCompletion(ctx, completion); err != nil {
		if s.claims != nil {
			if rerr := s.claims.Release(ctx, claimKey); rerr != nil {
				s.log.Warn("release event claim", zap.String("event_id", completion.EventID), zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

// applied collects side effects to publish after commit.
type applied struct {
	due        *repository.Due
	fundraiser *repository.Fundraiser
	donation   *repository.Donation
}

func (s *paymentService) applyCompletion(ctx context.Context, c *payment.Completion) error {
	target, ok := types.ParseTargetType(c.Metadata[payment.MetaTargetType])
	targetID := c.Metadata[payment.MetaTargetID]
	logFields := []zap.Field{
		zap.String("event_id", c.EventID),
		zap.String("session_id", c.SessionID),
		zap.String("target_type", string(target)),
		zap.String("target_id", targetID),
	}
	if !ok || targetID == "" {
		s.log.Warn("payment completion without a known target", logFields...)
		return nil
	}

	var payerID *string
	if v := c.Metadata[payment.MetaPayerUserID]; v != "" {
		payerID = &v
	}

	key, err := s.paymentKey(ctx, c)
	if err != nil {
		return err
	}
	logFields = append(logFields, zap.String("idempotency_key", key))

	var out applied
	now := s.now()
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		completed, err := tx.PaymentRepo.CompleteSession(ctx, c.SessionID, now)
		if errors.Is(err, repository.ErrConflict) {
			return errKeyAlreadyPaid
		}
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if !completed {
			s.log.Debug("session already completed or unknown", logFields...)
		}

		switch target {
		case types.TargetDue:
			return s.applyDue(ctx, tx, c, targetID, payerID, now, &out, logFields)
		case types.TargetTicket:
			return s.applyTicket(ctx, tx, c, key, targetID, payerID, logFields)
		case types.TargetFundraiserDonation:
			return s.applyDonation(ctx, tx, c, key, targetID, payerID, &out, logFields)
		}
		return nil
	})
	if errors.Is(err, errKeyAlreadyPaid) {
		// The payer was charged twice under one key; only the first counts.
		s.log.Warn("second payment for an already settled idempotency key", logFields...)
		return nil
	}
	if err != nil {
		s.log.Error("payment completion failed", append(logFields, zap.Error(err))...)
		return err
	}

	if s.notifier != nil {
		if out.due != nil {
			s.notifier.DuePaid(out.due)
		}
		if out.donation != nil {
			s.notifier.DonationReceived(out.fundraiser, out.donation)
		}
	}
	return nil
}

// paymentKey returns the intent's idempotency key, falling back to the stored
// session and then to the session id.
func (s *paymentService) paymentKey(ctx context.Context, c *payment.Completion) (string, error) {
	if key := c.Metadata[payment.MetaIdempotencyKey]; key != "" {
		return key, nil
	}
	sess, err := s.repos.PaymentRepo.FindSession(ctx, c.SessionID)
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	if sess != nil {
		return sess.IdempotencyKey, nil
	}
	return c.SessionID, nil
}

func (s *paymentService) applyDue(ctx context.Context, tx *repository.Repositories, c *payment.Completion, dueID string, payerID *string, now time.Time, out *applied, fields []zap.Field) error {
	due, err := tx.DuesRepo.FindByID(ctx, dueID)
	if err != nil {
		return fmt.Errorf("find due: %w", err)
	}
	if due == nil {
		s.log.Warn("payment for unknown due", fields...)
		return nil
	}
	if due.AmountCents != c.AmountCents {
		s.log.Warn("payment amount does not match due",
			append(fields, zap.Int64("paid_cents", c.AmountCents), zap.Int64("due_cents", due.AmountCents))...)
		return nil
	}

	paid, err := settleDue(ctx, tx.DuesRepo, dueID, types.PaymentGateway, payerID, now)
	switch {
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrNotFound):
		s.log.Info("due already settled", fields...)
		return nil
	case err != nil:
		return err
	}
	s.log.Info("due paid via gateway", fields...)
	out.due = paid
	return nil
}

func (s *paymentService) applyTicket(ctx context.Context, tx *repository.Repositories, c *payment.Completion, key, eventID string, payerID *string, fields []zap.Field) error {
	event, err := tx.FundraisingRepo.FindEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("find event: %w", err)
	}
	if event == nil {
		s.log.Warn("payment for unknown event", fields...)
		return nil
	}

	inserted, err := tx.FundraisingRepo.InsertTicket(ctx, &repository.Ticket{
		EventID:        event.ID,
		PurchaserID:    payerID,
		PurchaserEmail: c.PayerEmail,
		AmountCents:    c.AmountCents,
		PaymentRef:     c.SessionID,
		PaymentKey:     key,
	})
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if !inserted {
		s.log.Info("ticket already issued", fields...)
		return nil
	}
	s.log.Info("ticket issued", fields...)
	return nil
}

func (s *paymentService) applyDonation(ctx context.Context, tx *repository.Repositories, c *payment.Completion, key, fundraiserID string, payerID *string, out *applied, fields []zap.Field) error {
	f, err := tx.FundraisingRepo.FindFundraiser(ctx, fundraiserID)
	if err != nil {
		return fmt.Errorf("find fundraiser: %w", err)
	}
	if f == nil {
		s.log.Warn("donation for unknown fundraiser", fields...)
		return nil
	}

	donation := &repository.Donation{
		FundraiserID: f.ID,
		DonorID:      payerID,
		DonorEmail:   c.PayerEmail,
		AmountCents:  c.AmountCents,
		PaymentRef:   c.SessionID,
		PaymentKey:   key,
	}
	inserted, err := tx.FundraisingRepo.InsertDonation(ctx, donation)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	if !inserted {
		s.log.Info("donation already recorded", fields...)
		return nil
	}
	f.RaisedCents += donation.AmountCents
	out.fundraiser, out.donation = f, donation
	s.log.Info("donation recorded", fields...)
	return nil
}

func (s *paymentService) ExpireAbandonedSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.repos.PaymentRepo.ExpireOpenSessions(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	if n > 0 {
		s.log.Info("expired abandoned checkout sessions", zap.Int64("count", n))
	}
	return n, nil
}
