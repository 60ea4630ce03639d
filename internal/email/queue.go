package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue sends mail on background workers with a small retry budget.
// It satisfies the same method set as Service, so callers never block on SMTP.
type Queue struct {
	service *Service
	queue   chan *queuedEmail
	done    chan struct{}
	wg      sync.WaitGroup
	log     *zap.Logger
}

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	retries      int
}

const maxRetries = 3

// NewQueue creates a new email queue
func NewQueue(service *Service, workers int, log *zap.Logger) *Queue {
	q := &Queue{
		service: service,
		queue:   make(chan *queuedEmail, 1000),
		done:    make(chan struct{}),
		log:     log,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case email := <-q.queue:
			err := q.service.SendWithTemplate(email.to, email.subject, email.templateName, email.data)
			if err == nil {
				continue
			}
			q.log.Warn("email send failed",
				zap.Strings("to", email.to),
				zap.String("template", email.templateName),
				zap.Int("attempt", email.retries+1),
				zap.Error(err),
			)
			if email.retries < maxRetries {
				email.retries++
				select {
				case <-time.After(time.Second * time.Duration(email.retries*2)):
					q.enqueue(email)
				case <-q.done:
					return
				}
			}
		case <-q.done:
			return
		}
	}
}

func (q *Queue) enqueue(email *queuedEmail) {
	select {
	case q.queue <- email:
	default:
		q.log.Error("email queue full, dropping message",
			zap.Strings("to", email.to),
			zap.String("template", email.templateName),
		)
	}
}

// Enqueue adds an email to the queue
func (q *Queue) Enqueue(to []string, subject, templateName string, data interface{}) {
	q.enqueue(&queuedEmail{
		to:           to,
		subject:      subject,
		templateName: templateName,
		data:         data,
	})
}

func (q *Queue) SendInvitation(ctx context.Context, data InvitationData) error {
	if data.InvitedBy == "" {
		data.InvitedBy = "Your team"
	}
	q.Enqueue([]string{data.To}, "You're invited to join "+data.TeamName, "invitation", data)
	return nil
}

func (q *Queue) SendDuesReminder(ctx context.Context, data DuesReminderData) error {
	q.Enqueue([]string{data.To}, data.TeamName+" dues for "+data.DueMonth+" are unpaid", "dues_reminder", data)
	return nil
}

// Stop stops the email queue workers
func (q *Queue) Stop() {
	close(q.done)
	q.wg.Wait()
}
