// Package payment talks to the hosted checkout processor.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable covers transport failures, timeouts and processor-side 5xx/429.
	ErrUnavailable = errors.New("payment processor unavailable")
	// ErrRejected means the processor refused the request as invalid.
	ErrRejected         = errors.New("payment processor rejected request")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Metadata keys attached to every checkout session.
const (
	MetaTargetType     = "target_type"
	MetaTargetID       = "target_id"
	MetaIdempotencyKey = "idempotency_key"
	MetaPayerUserID    = "payer_user_id"
)

type SessionRequest struct {
	// ProcessorKey is forwarded as the processor's own idempotency key.
	ProcessorKey  string
	Description   string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
	// ExpiresAt closes the hosted page. Zero leaves the processor default.
	ExpiresAt time.Time
}

type Session struct {
	ID  string
	URL string
}

// Completion is a verified, paid checkout.
type Completion struct {
	EventID     string
	SessionID   string
	AmountCents int64
	PayerEmail  string
	Metadata    map[string]string
}

type Processor interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// ParseCompletion verifies the signature and decodes the event. It returns
	// (nil, nil) for authentic events that are not paid checkout completions.
	ParseCompletion(payload []byte, signature string) (*Completion, error)
}

// Disabled stands in when no processor credentials are configured.
type Disabled struct{}

func (Disabled) CreateSession(context.Context, SessionRequest) (*Session, error) {
	return nil, ErrUnavailable
}

func (Disabled) ParseCompletion([]byte, string) (*Completion, error) {
	return nil, ErrUnavailable
}
