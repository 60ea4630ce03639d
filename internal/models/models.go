package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are accepted as JSON numbers or strings and returned as
// fixed two-decimal strings so clients never see float rounding.

// ============================================
// Auth DTOs
// ============================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
}

// ============================================
// User / Team DTOs
// ============================================

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	TeamID    string    `json:"teamId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateTeamRequest struct {
	Name        string           `json:"name" binding:"required"`
	MonthlyDues *decimal.Decimal `json:"monthlyDues"`
}

type TeamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MonthlyDues *string   `json:"monthlyDues,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type MemberResponse struct {
	UserID   string    `json:"userId"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	ParentID *string   `json:"parentId,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// LinkParentRequest sets the athlete's parent. An empty parentId unlinks.
type LinkParentRequest struct {
	ParentID string `json:"parentId"`
}

// ============================================
// Invite DTOs
// ============================================

type CreateInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=admin coach parent athlete"`
}

type RedeemInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type InviteResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	TeamID     string     `json:"teamId"`
	Status     string     `json:"status"`
	SentBy     string     `json:"sentBy"`
	Link       string     `json:"link,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type InvitePreviewResponse struct {
	TeamName  string    `json:"teamName"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	Expired   bool      `json:"expired"`
}

// ============================================
// Dues DTOs
// ============================================

type GenerateDuesRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	DueMonth string          `json:"dueMonth" binding:"required"`
}

type DueResponse struct {
	ID            string     `json:"id"`
	TeamID        string     `json:"teamId"`
	AthleteID     string     `json:"athleteId"`
	ParentID      *string    `json:"parentId,omitempty"`
	Amount        string     `json:"amount"`
	DueMonth      string     `json:"dueMonth"`
	Paid          bool       `json:"paid"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	PaymentMethod *string    `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ============================================
// Fundraising DTOs
// ============================================

type CreateEventRequest struct {
	Name        string          `json:"name" binding:"required"`
	TicketPrice decimal.Decimal `json:"ticketPrice"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	Name        string    `json:"name"`
	TicketPrice string    `json:"ticketPrice"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateFundraiserRequest struct {
	Name string          `json:"name" binding:"required"`
	Goal decimal.Decimal `json:"goal"`
}

type FundraiserResponse struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	Raised    string    `json:"raised"`
	CreatedAt time.Time `json:"createdAt"`
}

type TicketResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// ============================================
// Checkout DTOs
// ============================================

type CheckoutRequest struct {
	TargetType string          `json:"targetType" binding:"required,oneof=due ticket fundraiser_donation"`
	TargetID   string          `json:"targetId" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Email      string          `json:"email" binding:"omitempty,email"`
}

type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	Reused      bool   `json:"reused"`
}
