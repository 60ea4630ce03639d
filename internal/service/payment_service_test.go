package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/teamfund-backend/internal/payment"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

func (f *fixture) unpaidDue(dt *duesTeam, athlete *repository.User) *repository.Due {
	f.t.Helper()
	f.generate(dt, "45", "2025-07")
	dues, _ := f.svc.Dues.ListDuesForUser(context.Background(), athlete.ID)
	if len(dues) != 1 {
		f.t.Fatalf("expected one due for athlete, got %d", len(dues))
	}
	return dues[0]
}

func (f *fixture) checkout(intent CheckoutIntent) *CheckoutResult {
	f.t.Helper()
	res, err := f.svc.Payment.CreateCheckoutSession(context.Background(), intent)
	if err != nil {
		f.t.Fatalf("CreateCheckoutSession: %v", err)
	}
	return res
}

func completionPayload(t *testing.T, eventID, sessionID string, target types.TargetType, targetID string, cents int64) []byte {
	t.Helper()
	b, err := json.Marshal(payment.Completion{
		EventID:     eventID,
		SessionID:   sessionID,
		AmountCents: cents,
		PayerEmail:  "payer@example.com",
		Metadata: map[string]string{
			payment.MetaTargetType: string(target),
			payment.MetaTargetID:   targetID,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestIdempotencyKeyIsDeterministic(t *testing.T) {
	a := IdempotencyKey(types.TargetDue, "d1", "u1", 4500)
	b := IdempotencyKey(types.TargetDue, "d1", "u1", 4500)
	if a != b {
		t.Fatal("same inputs produced different keys")
	}
	for _, other := range []string{
		IdempotencyKey(types.TargetTicket, "d1", "u1", 4500),
		IdempotencyKey(types.TargetDue, "d2", "u1", 4500),
		IdempotencyKey(types.TargetDue, "d1", "u2", 4500),
		IdempotencyKey(types.TargetDue, "d1", "u1", 4501),
	} {
		if other == a {
			t.Error("distinct inputs collided")
		}
	}
}

func TestCreateCheckoutForDue(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])

	res := f.checkout(CheckoutIntent{
		TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerUserID: &dt.parent.ID,
	})
	if res.RedirectURL == "" || res.Reused {
		t.Fatalf("unexpected result %+v", res)
	}

	req := f.proc.requests[0]
	key := IdempotencyKey(types.TargetDue, due.ID, dt.parent.ID, 4500)
	if req.ProcessorKey != key+"-1" {
		t.Errorf("processor key = %q", req.ProcessorKey)
	}
	if req.Metadata[payment.MetaTargetType] != "due" || req.Metadata[payment.MetaTargetID] != due.ID || req.Metadata[payment.MetaIdempotencyKey] != key {
		t.Errorf("metadata = %v", req.Metadata)
	}
	if req.AmountCents != 4500 || req.CustomerEmail != dt.parent.Email {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.SuccessURL, "http://localhost:3000/payments/success") {
		t.Errorf("success url = %q", req.SuccessURL)
	}

	sess, _ := f.repos.PaymentRepo.FindSession(context.Background(), res.SessionID)
	if sess == nil || sess.Status != types.SessionOpen || sess.IdempotencyKey != key {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestCreateCheckoutReusesOpenSession(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	intent := CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerUserID: &dt.parent.ID}

	first := f.checkout(intent)
	second := f.checkout(intent)

	if f.proc.calls() != 1 {
		t.Fatalf("processor calls = %d, want 1", f.proc.calls())
	}
	if !second.Reused || second.RedirectURL != first.RedirectURL {
		t.Errorf("second = %+v, first = %+v", second, first)
	}

	// Once the open session expires, a retry opens attempt 2.
	if _, err := f.svc.Payment.ExpireAbandonedSessions(context.Background(), -time.Hour); err != nil {
		t.Fatal(err)
	}
	f.checkout(intent)
	if got := f.proc.requests[1].ProcessorKey; !strings.HasSuffix(got, "-2") {
		t.Errorf("retry processor key = %q, want attempt 2", got)
	}
}

func TestCreateCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	paidDue, _ := f.svc.Dues.ListDuesForUser(context.Background(), dt.athletes[1].ID)
	if _, err := f.svc.Dues.MarkPaid(context.Background(), paidDue[0].ID, types.PaymentManual, nil); err != nil {
		t.Fatal(err)
	}
	event, err := f.svc.Fundraising.CreateEvent(context.Background(), dt.team.ID, dt.coach.ID, "Gala", decimal.NewFromInt(20))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		intent CheckoutIntent
		want   error
	}{
		{"due amount mismatch", CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(40), PayerEmail: "a@example.com"}, ErrInvalidAmount},
		{"due already paid", CheckoutIntent{TargetType: types.TargetDue, TargetID: paidDue[0].ID, Amount: decimal.NewFromInt(45), PayerEmail: "a@example.com"}, ErrAlreadyPaid},
		{"unknown due", CheckoutIntent{TargetType: types.TargetDue, TargetID: "00000000-0000-0000-0000-000000000000", Amount: decimal.NewFromInt(45), PayerEmail: "a@example.com"}, ErrNotFound},
		{"ticket price mismatch", CheckoutIntent{TargetType: types.TargetTicket, TargetID: event.ID, Amount: decimal.NewFromInt(5), PayerEmail: "a@example.com"}, ErrInvalidAmount},
		{"no payer", CheckoutIntent{TargetType: types.TargetTicket, TargetID: event.ID, Amount: decimal.NewFromInt(20)}, ErrInvalidInput},
		{"bad target type", CheckoutIntent{TargetType: "car", TargetID: event.ID, Amount: decimal.NewFromInt(20), PayerEmail: "a@example.com"}, ErrInvalidInput},
		{"zero amount", CheckoutIntent{TargetType: types.TargetFundraiserDonation, TargetID: event.ID, Amount: decimal.Zero, PayerEmail: "a@example.com"}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Payment.CreateCheckoutSession(context.Background(), tt.intent)
			wantErr(t, err, tt.want)
		})
	}
	if f.proc.calls() != 0 {
		t.Errorf("invalid intents reached the processor %d times", f.proc.calls())
	}
}

func TestCreateCheckoutGatewayFailures(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	intent := CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerEmail: "p@example.com"}

	f.proc.err = fmt.Errorf("%w: connection refused", payment.ErrUnavailable)
	_, err := f.svc.Payment.CreateCheckoutSession(context.Background(), intent)
	wantErr(t, err, ErrGatewayUnavailable)

	f.proc.err = fmt.Errorf("%w: bad currency", payment.ErrRejected)
	_, err = f.svc.Payment.CreateCheckoutSession(context.Background(), intent)
	wantErr(t, err, ErrPaymentRejected)

	if n, _ := f.repos.PaymentRepo.CountSessionsByKey(context.Background(), IdempotencyKey(types.TargetDue, due.ID, "anon:p@example.com", 4500)); n != 0 {
		t.Errorf("failed attempts recorded %d sessions", n)
	}
}

func TestCreateCheckoutIsBoundedByTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.CheckoutTimeout = 30 * time.Millisecond
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	f.proc.block = true

	start := time.Now()
	_, err := f.svc.Payment.CreateCheckoutSession(context.Background(), CheckoutIntent{
		TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerEmail: "p@example.com",
	})
	wantErr(t, err, ErrGatewayUnavailable)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("checkout took %v", elapsed)
	}
}

func TestHandleCompletionMarksDuePaidOnce(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	res := f.checkout(CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerUserID: &dt.parent.ID})

	payload := completionPayload(t, "evt_1", res.SessionID, types.TargetDue, due.ID, 4500)
	for i := 0; i < 3; i++ {
		if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	// A distinct event for the same checkout must not settle twice either.
	other := completionPayload(t, "evt_2", res.SessionID, types.TargetDue, due.ID, 4500)
	if err := f.svc.Payment.HandleCompletion(context.Background(), other, validSignature); err != nil {
		t.Fatalf("second event: %v", err)
	}

	got := f.due(due.ID)
	if !got.Paid || *got.PaymentMethod != types.PaymentGateway {
		t.Fatalf("due not settled by gateway: %+v", got)
	}
	if len(f.notifier.duePaid) != 1 {
		t.Errorf("due_paid notifications = %d, want 1", len(f.notifier.duePaid))
	}
	sess, _ := f.repos.PaymentRepo.FindSession(context.Background(), res.SessionID)
	if sess.Status != types.SessionCompleted {
		t.Errorf("session status = %q", sess.Status)
	}
}

func TestHandleCompletionForAlreadyPaidDue(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])

	if _, err := f.svc.Dues.ConfirmManualPayment(context.Background(), due.ID, dt.coach.ID); err != nil {
		t.Fatal(err)
	}
	before := f.due(due.ID)

	f.advance(time.Hour)
	payload := completionPayload(t, "evt_1", "cs_unknown", types.TargetDue, due.ID, 4500)
	if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}

	after := f.due(due.ID)
	if !after.PaidAt.Equal(*before.PaidAt) || *after.PaymentMethod != types.PaymentManual {
		t.Errorf("settled due changed: before %+v after %+v", before, after)
	}
}

func TestHandleCompletionNoOps(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])

	cases := map[string][]byte{
		"unknown due":     completionPayload(t, "evt_a", "cs_a", types.TargetDue, "00000000-0000-0000-0000-000000000000", 4500),
		"unknown target":  completionPayload(t, "evt_b", "cs_b", "car", due.ID, 4500),
		"amount mismatch": completionPayload(t, "evt_c", "cs_c", types.TargetDue, due.ID, 100),
		"not a payment":   []byte(`{}`),
	}
	for name, payload := range cases {
		if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if f.due(due.ID).Paid {
		t.Error("no-op event settled the due")
	}
}

func TestHandleCompletionRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])

	payload := completionPayload(t, "evt_1", "cs_1", types.TargetDue, due.ID, 4500)
	err := f.svc.Payment.HandleCompletion(context.Background(), payload, "forged")
	wantErr(t, err, ErrInvalidSignature)
	if f.due(due.ID).Paid {
		t.Error("unsigned event mutated state")
	}
}

func TestHandleCompletionReleasesClaimOnFailure(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	payload := completionPayload(t, "evt_1", "cs_1", types.TargetDue, due.ID, 4500)

	f.store.completeErr = errors.New("connection reset")
	if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err == nil {
		t.Fatal("expected transient failure")
	}
	if f.due(due.ID).Paid {
		t.Fatal("failed delivery settled the due")
	}

	if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !f.due(due.ID).Paid {
		t.Fatal("redelivery after failure did not settle the due")
	}
}

func TestHandleCompletionWithoutClaimStore(t *testing.T) {
	f := newFixture(t)
	f.claims.err = errors.New("redis down")
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	payload := completionPayload(t, "evt_1", "cs_1", types.TargetDue, due.ID, 4500)

	for i := 0; i < 2; i++ {
		if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(f.notifier.duePaid) != 1 {
		t.Errorf("due_paid notifications = %d, want 1", len(f.notifier.duePaid))
	}
}

func TestConcurrentDonationCompletions(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	fr, err := f.svc.Fundraising.CreateFundraiser(context.Background(), dt.team.ID, dt.coach.ID, "New Jerseys", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	res := f.checkout(CheckoutIntent{
		TargetType: types.TargetFundraiserDonation, TargetID: fr.ID, Amount: decimal.RequireFromString("25.50"), PayerEmail: "donor@example.com",
	})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := completionPayload(t, fmt.Sprintf("evt_%d", i%2), res.SessionID, types.TargetFundraiserDonation, fr.ID, 2550)
			if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
				t.Errorf("delivery %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := f.svc.Fundraising.GetFundraiser(context.Background(), fr.ID)
	if got.RaisedCents != 2550 {
		t.Fatalf("raised = %d, want 2550", got.RaisedCents)
	}
	if len(f.notifier.donations) != 1 {
		t.Errorf("donation notifications = %d, want 1", len(f.notifier.donations))
	}
}

func TestHandleCompletionIssuesTicket(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	event, _ := f.svc.Fundraising.CreateEvent(context.Background(), dt.team.ID, dt.coach.ID, "Gala", decimal.NewFromInt(20))
	res := f.checkout(CheckoutIntent{TargetType: types.TargetTicket, TargetID: event.ID, Amount: decimal.NewFromInt(20), PayerUserID: &dt.parent.ID})

	payload, _ := json.Marshal(payment.Completion{
		EventID: "evt_t", SessionID: res.SessionID, AmountCents: 2000, PayerEmail: dt.parent.Email,
		Metadata: map[string]string{
			payment.MetaTargetType:  string(types.TargetTicket),
			payment.MetaTargetID:    event.ID,
			payment.MetaPayerUserID: dt.parent.ID,
		},
	})
	for i := 0; i < 2; i++ {
		if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
			t.Fatal(err)
		}
	}

	tickets, _ := f.svc.Fundraising.ListTickets(context.Background(), dt.parent.ID)
	if len(tickets) != 1 || tickets[0].EventID != event.ID {
		t.Fatalf("tickets = %+v", tickets)
	}
}

func TestExpireAbandonedSessions(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	res := f.checkout(CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerEmail: "p@example.com"})

	n, err := f.svc.Payment.ExpireAbandonedSessions(context.Background(), 24*time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("fresh session expired: n=%d err=%v", n, err)
	}

	f.advance(25 * time.Hour)
	n, _ = f.svc.Payment.ExpireAbandonedSessions(context.Background(), 24*time.Hour)
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	sess, _ := f.repos.PaymentRepo.FindSession(context.Background(), res.SessionID)
	if sess.Status != types.SessionExpired {
		t.Errorf("status = %q", sess.Status)
	}

	// A late completion for an expired session still settles the due.
	payload := completionPayload(t, "evt_late", res.SessionID, types.TargetDue, due.ID, 4500)
	if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
		t.Fatal(err)
	}
	if !f.due(due.ID).Paid {
		t.Error("late completion ignored")
	}
}

func (f *fixture) donationFundraiser(dt *duesTeam) *repository.Fundraiser {
	f.t.Helper()
	fr, err := f.svc.Fundraising.CreateFundraiser(context.Background(), dt.team.ID, dt.coach.ID, "New Jerseys", decimal.NewFromInt(1000))
	if err != nil {
		f.t.Fatal(err)
	}
	return fr
}

func TestCheckoutRefusesSettledKey(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	fr := f.donationFundraiser(dt)
	intent := CheckoutIntent{
		TargetType: types.TargetFundraiserDonation, TargetID: fr.ID, Amount: decimal.NewFromInt(25), PayerEmail: "donor@example.com",
	}

	res := f.checkout(intent)
	payload := completionPayload(t, "evt_1", res.SessionID, types.TargetFundraiserDonation, fr.ID, 2500)
	if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Payment.CreateCheckoutSession(context.Background(), intent)
	wantErr(t, err, ErrAlreadyPaid)
	if f.proc.calls() != 1 {
		t.Errorf("processor calls = %d, want 1", f.proc.calls())
	}
	got, _ := f.svc.Fundraising.GetFundraiser(context.Background(), fr.ID)
	if got.RaisedCents != 2500 {
		t.Errorf("raised = %d, want 2500", got.RaisedCents)
	}
}

func TestSweptAndRetriedSessionsSettleOnce(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	fr := f.donationFundraiser(dt)
	intent := CheckoutIntent{
		TargetType: types.TargetFundraiserDonation, TargetID: fr.ID, Amount: decimal.RequireFromString("25.50"), PayerEmail: "donor@example.com",
	}

	first := f.checkout(intent)
	if _, err := f.svc.Payment.ExpireAbandonedSessions(context.Background(), -time.Hour); err != nil {
		t.Fatal(err)
	}
	second := f.checkout(intent)
	if second.SessionID == first.SessionID {
		t.Fatal("retry reused the swept session")
	}

	// The payer completes both hosted pages.
	for i, sessionID := range []string{first.SessionID, second.SessionID} {
		payload := completionPayload(t, fmt.Sprintf("evt_%d", i), sessionID, types.TargetFundraiserDonation, fr.ID, 2550)
		if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
	}

	got, _ := f.svc.Fundraising.GetFundraiser(context.Background(), fr.ID)
	if got.RaisedCents != 2550 {
		t.Fatalf("raised = %d, want 2550", got.RaisedCents)
	}
	if len(f.notifier.donations) != 1 {
		t.Errorf("donation notifications = %d, want 1", len(f.notifier.donations))
	}
	sess, _ := f.repos.PaymentRepo.FindSession(context.Background(), second.SessionID)
	if sess.Status == types.SessionCompleted {
		t.Error("second session for a settled key marked completed")
	}
}

func TestCompletionsSharingKeyApplyOnce(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	fr := f.donationFundraiser(dt)
	event, _ := f.svc.Fundraising.CreateEvent(context.Background(), dt.team.ID, dt.coach.ID, "Gala", decimal.NewFromInt(20))

	tests := []struct {
		target   types.TargetType
		targetID string
	}{
		{types.TargetFundraiserDonation, fr.ID},
		{types.TargetTicket, event.ID},
	}
	for _, tt := range tests {
		key := IdempotencyKey(tt.target, tt.targetID, dt.parent.ID, 2000)
		for i, sessionID := range []string{"cs_a", "cs_b"} {
			payload, _ := json.Marshal(payment.Completion{
				EventID: fmt.Sprintf("evt_%s_%d", tt.target, i), SessionID: sessionID + string(tt.target), AmountCents: 2000, PayerEmail: dt.parent.Email,
				Metadata: map[string]string{
					payment.MetaTargetType:     string(tt.target),
					payment.MetaTargetID:       tt.targetID,
					payment.MetaPayerUserID:    dt.parent.ID,
					payment.MetaIdempotencyKey: key,
				},
			})
			if err := f.svc.Payment.HandleCompletion(context.Background(), payload, validSignature); err != nil {
				t.Fatalf("%s completion %d: %v", tt.target, i, err)
			}
		}
	}

	got, _ := f.svc.Fundraising.GetFundraiser(context.Background(), fr.ID)
	if got.RaisedCents != 2000 {
		t.Errorf("raised = %d, want 2000", got.RaisedCents)
	}
	tickets, _ := f.svc.Fundraising.ListTickets(context.Background(), dt.parent.ID)
	if len(tickets) != 1 {
		t.Errorf("tickets = %d, want 1", len(tickets))
	}
}

func TestCheckoutPageClosesBeforeSweep(t *testing.T) {
	f := newFixture(t)
	dt := newDuesTeam(f)
	due := f.unpaidDue(dt, dt.athletes[0])
	f.checkout(CheckoutIntent{TargetType: types.TargetDue, TargetID: due.ID, Amount: decimal.NewFromInt(45), PayerUserID: &dt.parent.ID})

	expires := f.proc.requests[0].ExpiresAt
	if !expires.Equal(f.clock().Add(CheckoutSessionTTL)) {
		t.Errorf("expires at = %v, want %v", expires, f.clock().Add(CheckoutSessionTTL))
	}
	if CheckoutSessionTTL >= 24*time.Hour {
		t.Errorf("checkout TTL %v outlives the abandoned-session sweep", CheckoutSessionTTL)
	}
}
