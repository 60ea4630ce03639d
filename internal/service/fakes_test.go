package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/email"
	"github.com/Marga-Ghale/teamfund-backend/internal/payment"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// ============================================
// In-memory store
// ============================================

type fakeStore struct {
	mu sync.Mutex

	users       map[string]*repository.User
	teams       map[string]*repository.Team
	memberships []*repository.TeamMembership
	invites     map[string]*repository.Invite
	dues        map[string]*repository.Due
	events      map[string]*repository.Event
	fundraisers map[string]*repository.Fundraiser
	tickets     []*repository.Ticket
	donations   []*repository.Donation
	sessions    map[string]*repository.CheckoutSession

	completeErr error
	now         func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*repository.User),
		teams:       make(map[string]*repository.Team),
		invites:     make(map[string]*repository.Invite),
		dues:        make(map[string]*repository.Due),
		events:      make(map[string]*repository.Event),
		fundraisers: make(map[string]*repository.Fundraiser),
		sessions:    make(map[string]*repository.CheckoutSession),
		now:         time.Now,
	}
}

// repos wires the fakes. Transactions are serialized, standing in for row locks.
func (s *fakeStore) repos() *repository.Repositories {
	base := &repository.Repositories{
		UserRepo:        &fakeUserRepo{s},
		TeamRepo:        &fakeTeamRepo{s},
		InvitationRepo:  &fakeInviteRepo{s},
		DuesRepo:        &fakeDuesRepo{s},
		PaymentRepo:     &fakePaymentRepo{s},
		FundraisingRepo: &fakeFundraisingRepo{s},
	}
	var txMu sync.Mutex
	return base.WithTx(func(ctx context.Context, fn func(*repository.Repositories) error) error {
		txMu.Lock()
		defer txMu.Unlock()
		return fn(base)
	})
}

func newFakeID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

// ---- users ----

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, u *repository.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.ID = newFakeID(u.ID)
	u.CreatedAt = r.s.now()
	c := *u
	r.s.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// ---- teams ----

type fakeTeamRepo struct{ s *fakeStore }

func (r *fakeTeamRepo) Create(ctx context.Context, t *repository.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = newFakeID(t.ID)
	t.CreatedAt = r.s.now()
	c := *t
	r.s.teams[t.ID] = &c
	return nil
}

func (r *fakeTeamRepo) FindByID(ctx context.Context, id string) (*repository.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.teams[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (r *fakeTeamRepo) ListWithMonthlyDues(ctx context.Context) ([]*repository.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.Team
	for _, t := range r.s.teams {
		if t.MonthlyDuesCents != nil {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) AddMembership(ctx context.Context, m *repository.TeamMembership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.memberships {
		if existing.UserID == m.UserID {
			return repository.ErrConflict
		}
		if m.InviteID != nil && existing.InviteID != nil && *existing.InviteID == *m.InviteID {
			return repository.ErrConflict
		}
	}
	m.ID = newFakeID(m.ID)
	m.CreatedAt = r.s.now()
	c := *m
	r.s.memberships = append(r.s.memberships, &c)
	return nil
}

func (r *fakeTeamRepo) FindMembership(ctx context.Context, userID string) (*repository.TeamMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeTeamRepo) ListMembers(ctx context.Context, teamID string) ([]*repository.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.Member
	for _, m := range r.s.memberships {
		if m.TeamID != teamID {
			continue
		}
		u := r.s.users[m.UserID]
		out = append(out, &repository.Member{
			UserID: u.ID, Email: u.Email, Name: u.Name, Role: m.Role, ParentID: m.ParentID, JoinedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (r *fakeTeamRepo) ListByRole(ctx context.Context, teamID string, role types.Role) ([]*repository.TeamMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.TeamMembership
	for _, m := range r.s.memberships {
		if m.TeamID == teamID && m.Role == role {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) SetParent(ctx context.Context, athleteID string, parentID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.UserID == athleteID && m.Role == types.RoleAthlete {
			m.ParentID = parentID
		}
	}
	return nil
}

// ---- invites ----

type fakeInviteRepo struct{ s *fakeStore }

func (r *fakeInviteRepo) Create(ctx context.Context, inv *repository.Invite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invites {
		if existing.Token == inv.Token {
			return repository.ErrConflict
		}
	}
	inv.ID = newFakeID(inv.ID)
	c := *inv
	r.s.invites[inv.ID] = &c
	return nil
}

func (r *fakeInviteRepo) FindByID(ctx context.Context, id string) (*repository.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv, ok := r.s.invites[id]; ok {
		c := *inv
		return &c, nil
	}
	return nil, nil
}

func (r *fakeInviteRepo) FindByToken(ctx context.Context, token string) (*repository.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invites {
		if inv.Token == token {
			c := *inv
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeInviteRepo) FindByTokenForUpdate(ctx context.Context, token string) (*repository.Invite, error) {
	return r.FindByToken(ctx, token)
}

func (r *fakeInviteRepo) ListByTeam(ctx context.Context, teamID string) ([]*repository.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.Invite
	for _, inv := range r.s.invites {
		if inv.TeamID == teamID {
			c := *inv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeInviteRepo) MarkAccepted(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.Status != types.InviteStatusPending {
		return false, nil
	}
	inv.Status = types.InviteStatusAccepted
	inv.AcceptedUserID = &userID
	inv.ResolvedAt = &at
	return true, nil
}

func (r *fakeInviteRepo) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.Status != types.InviteStatusPending {
		return false, nil
	}
	inv.Status = types.InviteStatusRevoked
	inv.ResolvedAt = &at
	return true, nil
}

// ---- dues ----

type fakeDuesRepo struct{ s *fakeStore }

func (r *fakeDuesRepo) InsertIfAbsent(ctx context.Context, d *repository.Due) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.dues {
		if existing.AthleteID == d.AthleteID && existing.DueMonth == d.DueMonth {
			return false, nil
		}
	}
	d.ID = newFakeID(d.ID)
	d.CreatedAt = r.s.now()
	c := *d
	r.s.dues[d.ID] = &c
	return true, nil
}

func (r *fakeDuesRepo) FindByID(ctx context.Context, id string) (*repository.Due, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.dues[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, nil
}

func (r *fakeDuesRepo) MarkPaid(ctx context.Context, id string, method types.PaymentMethod, paidBy *string, at time.Time) (*repository.Due, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.dues[id]
	if !ok || d.Paid {
		return nil, nil
	}
	d.Paid = true
	d.PaidAt = &at
	d.PaymentMethod = &method
	d.PaidBy = paidBy
	c := *d
	return &c, nil
}

func (r *fakeDuesRepo) ListForUser(ctx context.Context, userID string) ([]*repository.Due, error) {
	return r.filter(func(d *repository.Due) bool {
		return d.AthleteID == userID || (d.ParentID != nil && *d.ParentID == userID)
	}), nil
}

func (r *fakeDuesRepo) ListByTeam(ctx context.Context, teamID, month string) ([]*repository.Due, error) {
	return r.filter(func(d *repository.Due) bool {
		return d.TeamID == teamID && (month == "" || d.DueMonth == month)
	}), nil
}

func (r *fakeDuesRepo) ListUnpaidForMonth(ctx context.Context, month string) ([]*repository.Due, error) {
	return r.filter(func(d *repository.Due) bool { return d.DueMonth == month && !d.Paid }), nil
}

func (r *fakeDuesRepo) filter(keep func(*repository.Due) bool) []*repository.Due {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.Due
	for _, d := range r.s.dues {
		if keep(d) {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- checkout sessions ----

type fakePaymentRepo struct{ s *fakeStore }

func (r *fakePaymentRepo) CreateSession(ctx context.Context, sess *repository.CheckoutSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.IdempotencyKey == sess.IdempotencyKey && existing.Status == types.SessionOpen {
			return repository.ErrConflict
		}
	}
	sess.CreatedAt = r.s.now()
	c := *sess
	r.s.sessions[sess.SessionID] = &c
	return nil
}

func (r *fakePaymentRepo) FindSession(ctx context.Context, id string) (*repository.CheckoutSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok {
		c := *sess
		return &c, nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindOpenSessionByKey(ctx context.Context, key string) (*repository.CheckoutSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.IdempotencyKey == key && sess.Status == types.SessionOpen {
			c := *sess
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindCompletedSessionByKey(ctx context.Context, key string) (*repository.CheckoutSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.IdempotencyKey == key && sess.Status == types.SessionCompleted {
			c := *sess
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) CountSessionsByKey(ctx context.Context, key string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sess := range r.s.sessions {
		if sess.IdempotencyKey == key {
			n++
		}
	}
	return n, nil
}

func (r *fakePaymentRepo) CompleteSession(ctx context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.completeErr != nil {
		err := r.s.completeErr
		r.s.completeErr = nil
		return false, err
	}
	sess, ok := r.s.sessions[id]
	if !ok || sess.Status == types.SessionCompleted {
		return false, nil
	}
	for _, other := range r.s.sessions {
		if other.IdempotencyKey == sess.IdempotencyKey && other.Status == types.SessionCompleted {
			return false, repository.ErrConflict
		}
	}
	sess.Status = types.SessionCompleted
	sess.CompletedAt = &at
	return true, nil
}

func (r *fakePaymentRepo) ExpireOpenSessions(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.Status == types.SessionOpen && sess.CreatedAt.Before(before) {
			sess.Status = types.SessionExpired
			n++
		}
	}
	return n, nil
}

// ---- fundraising ----

type fakeFundraisingRepo struct{ s *fakeStore }

func (r *fakeFundraisingRepo) CreateEvent(ctx context.Context, e *repository.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = newFakeID(e.ID)
	e.CreatedAt = r.s.now()
	c := *e
	r.s.events[e.ID] = &c
	return nil
}

func (r *fakeFundraisingRepo) FindEvent(ctx context.Context, id string) (*repository.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.events[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (r *fakeFundraisingRepo) CreateFundraiser(ctx context.Context, f *repository.Fundraiser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f.ID = newFakeID(f.ID)
	f.CreatedAt = r.s.now()
	c := *f
	r.s.fundraisers[f.ID] = &c
	return nil
}

func (r *fakeFundraisingRepo) FindFundraiser(ctx context.Context, id string) (*repository.Fundraiser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f, ok := r.s.fundraisers[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, nil
}

func (r *fakeFundraisingRepo) InsertTicket(ctx context.Context, t *repository.Ticket) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tickets {
		if existing.PaymentRef == t.PaymentRef || (t.PaymentKey != "" && existing.PaymentKey == t.PaymentKey) {
			return false, nil
		}
	}
	t.ID = newFakeID(t.ID)
	c := *t
	r.s.tickets = append(r.s.tickets, &c)
	return true, nil
}

func (r *fakeFundraisingRepo) ListTicketsByPurchaser(ctx context.Context, userID string) ([]*repository.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*repository.Ticket
	for _, t := range r.s.tickets {
		if t.PurchaserID != nil && *t.PurchaserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeFundraisingRepo) InsertDonation(ctx context.Context, d *repository.Donation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.donations {
		if existing.PaymentRef == d.PaymentRef || (d.PaymentKey != "" && existing.PaymentKey == d.PaymentKey) {
			return false, nil
		}
	}
	d.ID = newFakeID(d.ID)
	c := *d
	r.s.donations = append(r.s.donations, &c)
	if f, ok := r.s.fundraisers[d.FundraiserID]; ok {
		f.RaisedCents += d.AmountCents
	}
	return true, nil
}

// ============================================
// Collaborator fakes
// ============================================

type fakeProcessor struct {
	mu       sync.Mutex
	requests []payment.SessionRequest
	err      error
	block    bool
}

func (p *fakeProcessor) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	err, block := p.err, p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", payment.ErrUnavailable, ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("cs_test_%d", n)
	return &payment.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

const validSignature = "valid-signature"

// ParseCompletion accepts a JSON-encoded payment.Completion signed with validSignature.
func (p *fakeProcessor) ParseCompletion(payload []byte, signature string) (*payment.Completion, error) {
	if signature != validSignature {
		return nil, payment.ErrInvalidSignature
	}
	var c payment.Completion
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	if c.EventID == "" {
		return nil, nil
	}
	return &c, nil
}

func (p *fakeProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeNotifier struct {
	mu        sync.Mutex
	duePaid   []string
	accepted  []string
	donations []string
}

func (n *fakeNotifier) DuePaid(due *repository.Due) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.duePaid = append(n.duePaid, due.ID)
}

func (n *fakeNotifier) InviteAccepted(invite *repository.Invite, user *repository.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, invite.ID)
}

func (n *fakeNotifier) DonationReceived(f *repository.Fundraiser, d *repository.Donation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.donations = append(n.donations, d.ID)
}

type fakeMailer struct {
	mu          sync.Mutex
	invitations []email.InvitationData
	reminders   []email.DuesReminderData
}

func (m *fakeMailer) SendInvitation(ctx context.Context, data email.InvitationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations = append(m.invitations, data)
	return nil
}

func (m *fakeMailer) SendDuesReminder(ctx context.Context, data email.DuesReminderData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, data)
	return nil
}

type fakeClaims struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (c *fakeClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *fakeClaims) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

// ============================================
// Fixture
// ============================================

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	store    *fakeStore
	repos    *repository.Repositories
	svc      *Services
	cfg      *config.Config
	proc     *fakeProcessor
	notifier *fakeNotifier
	mailer   *fakeMailer
	claims   *fakeClaims

	clockMu sync.Mutex
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    newFakeStore(),
		proc:     &fakeProcessor{},
		notifier: &fakeNotifier{},
		mailer:   &fakeMailer{},
		claims:   &fakeClaims{keys: make(map[string]bool)},
		now:      t0,
		cfg: &config.Config{
			JWTSecret:           "test-secret-0123456789",
			JWTExpiry:           24,
			FrontendURL:         "http://localhost:3000",
			CheckoutCurrency:    "usd",
			CheckoutTimeout:     time.Second,
			CheckoutSuccessPath: "/payments/success",
			CheckoutCancelPath:  "/payments/cancel",
		},
	}
	f.store.now = f.clock
	f.repos = f.store.repos()
	f.svc = NewServices(&ServiceDeps{
		Config:    f.cfg,
		Repos:     f.repos,
		Processor: f.proc,
		Notifier:  f.notifier,
		Mailer:    f.mailer,
		Claims:    f.claims,
		Clock:     f.clock,
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) team(name string) *repository.Team {
	f.t.Helper()
	team := &repository.Team{Name: name}
	if err := f.repos.TeamRepo.Create(context.Background(), team); err != nil {
		f.t.Fatalf("create team: %v", err)
	}
	return team
}

// member creates a user. teamID may be empty for master admins.
func (f *fixture) member(role types.Role, teamID string) *repository.User {
	f.t.Helper()
	ctx := context.Background()
	u := &repository.User{
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		Name:         string(role),
		PasswordHash: "x",
		Role:         role,
	}
	if err := f.repos.UserRepo.Create(ctx, u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	if teamID != "" {
		if err := f.repos.TeamRepo.AddMembership(ctx, &repository.TeamMembership{UserID: u.ID, TeamID: teamID, Role: role}); err != nil {
			f.t.Fatalf("add membership: %v", err)
		}
	}
	return u
}

func (f *fixture) linkParent(athleteID, parentID string) {
	f.t.Helper()
	if err := f.repos.TeamRepo.SetParent(context.Background(), athleteID, &parentID); err != nil {
		f.t.Fatalf("set parent: %v", err)
	}
}

func (f *fixture) membershipCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.memberships)
}

func (f *fixture) dueCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.dues)
}

func (f *fixture) due(id string) *repository.Due {
	f.t.Helper()
	d, err := f.repos.DuesRepo.FindByID(context.Background(), id)
	if err != nil || d == nil {
		f.t.Fatalf("find due %s: %v", id, err)
	}
	return d
}

func wantErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("got error %v, want %v", got, want)
	}
}
