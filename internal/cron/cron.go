package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/service"
)

// abandonedAfter outlives the processor-side session, so a swept session can
// no longer be paid.
const abandonedAfter = service.CheckoutSessionTTL + time.Hour

// jobTimeout bounds a single run of any job.
const jobTimeout = 5 * time.Minute

// Schedules are standard five-field cron expressions.
type Schedules struct {
	Dues         string
	Reminders    string
	SessionSweep string
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	dues     service.DuesService
	payments service.PaymentService
	now      service.Clock
	log      *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(services *service.Services, now service.Clock, log *zap.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	log = log.Named("cron")
	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	return &Scheduler{
		// Schedules and dueMonth both read UTC.
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
		dues:     services.Dues,
		payments: services.Payment,
		now:      now,
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start(sched Schedules) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"dues generation", sched.Dues, s.GenerateMonthlyDues},
		{"dues reminders", sched.Reminders, s.SendDuesReminders},
		{"session sweep", sched.SessionSweep, s.SweepAbandonedSessions},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) currentMonth() string {
	return s.now().UTC().Format("2006-01")
}

// GenerateMonthlyDues bills the current month for every team with a monthly amount.
func (s *Scheduler) GenerateMonthlyDues(ctx context.Context) {
	month := s.currentMonth()
	res, err := s.dues.GenerateScheduledDues(ctx, month)
	if err != nil {
		s.log.Error("scheduled dues generation failed", zap.String("month", month), zap.Error(err))
	}
	if res != nil {
		s.log.Info("scheduled dues generated",
			zap.String("month", month),
			zap.Int("created", res.Created),
			zap.Int("skipped", res.Skipped),
		)
	}
}

// SendDuesReminders emails the payers of every unpaid due for the current month.
func (s *Scheduler) SendDuesReminders(ctx context.Context) {
	month := s.currentMonth()
	sent, err := s.dues.SendReminders(ctx, month)
	if err != nil {
		s.log.Error("dues reminders failed", zap.String("month", month), zap.Error(err))
		return
	}
	s.log.Info("dues reminders sent", zap.String("month", month), zap.Int("sent", sent))
}

// SweepAbandonedSessions expires checkout sessions left open past abandonedAfter.
func (s *Scheduler) SweepAbandonedSessions(ctx context.Context) {
	if _, err := s.payments.ExpireAbandonedSessions(ctx, abandonedAfter); err != nil {
		s.log.Error("session sweep failed", zap.Error(err))
	}
}
