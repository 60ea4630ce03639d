package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
)

// retryAfterSeconds is advertised when the payment gateway is unavailable.
const retryAfterSeconds = "30"

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth        *AuthHandler
	Team        *TeamHandler
	Invitation  *InvitationHandler
	Dues        *DuesHandler
	Fundraising *FundraisingHandler
	Payment     *PaymentHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services, log *zap.Logger) *Handlers {
	return &Handlers{
		Auth:        &AuthHandler{authService: services.Auth, directory: services.Directory},
		Team:        &TeamHandler{directory: services.Directory},
		Invitation:  &InvitationHandler{invitations: services.Invitation},
		Dues:        &DuesHandler{dues: services.Dues},
		Fundraising: &FundraisingHandler{fundraising: services.Fundraising},
		Payment:     &PaymentHandler{payments: services.Payment, log: log.Named("payments")},
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, service.ErrAuthorization):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInviteExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrAlreadyRedeemed),
		errors.Is(err, service.ErrDuplicateDue),
		errors.Is(err, service.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGatewayUnavailable):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrGatewayUnavailable.Error()})
	case errors.Is(err, service.ErrPaymentRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": service.ErrPaymentRejected.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// ============================================
// Response Mappers
// ============================================

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func toUserResponse(u *repository.User, teamID string) models.UserResponse {
	return models.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		TeamID:    teamID,
		CreatedAt: u.CreatedAt,
	}
}

func toTeamResponse(t *repository.Team) models.TeamResponse {
	resp := models.TeamResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
	if t.MonthlyDuesCents != nil {
		dues := money(*t.MonthlyDuesCents)
		resp.MonthlyDues = &dues
	}
	return resp
}

func toMemberResponse(m *repository.Member) models.MemberResponse {
	return models.MemberResponse{
		UserID:   m.UserID,
		Email:    m.Email,
		Name:     m.Name,
		Role:     string(m.Role),
		ParentID: m.ParentID,
		JoinedAt: m.JoinedAt,
	}
}

// toInviteResponse never includes the token; link is set only for the issuer.
func toInviteResponse(inv *repository.Invite, link string) models.InviteResponse {
	return models.InviteResponse{
		ID:         inv.ID,
		Email:      inv.Email,
		Role:       string(inv.Role),
		TeamID:     inv.TeamID,
		Status:     string(inv.Status),
		SentBy:     inv.SentBy,
		Link:       link,
		CreatedAt:  inv.CreatedAt,
		ExpiresAt:  inv.ExpiresAt,
		ResolvedAt: inv.ResolvedAt,
	}
}

func toDueResponse(d *repository.Due) models.DueResponse {
	resp := models.DueResponse{
		ID:        d.ID,
		TeamID:    d.TeamID,
		AthleteID: d.AthleteID,
		ParentID:  d.ParentID,
		Amount:    money(d.AmountCents),
		DueMonth:  d.DueMonth,
		Paid:      d.Paid,
		PaidAt:    d.PaidAt,
		CreatedAt: d.CreatedAt,
	}
	if d.PaymentMethod != nil {
		m := string(*d.PaymentMethod)
		resp.PaymentMethod = &m
	}
	return resp
}

func toDueResponses(dues []*repository.Due) []models.DueResponse {
	out := make([]models.DueResponse, len(dues))
	for i, d := range dues {
		out[i] = toDueResponse(d)
	}
	return out
}

func toEventResponse(e *repository.Event) models.EventResponse {
	return models.EventResponse{
		ID:          e.ID,
		TeamID:      e.TeamID,
		Name:        e.Name,
		TicketPrice: money(e.TicketPriceCents),
		CreatedAt:   e.CreatedAt,
	}
}

func toFundraiserResponse(f *repository.Fundraiser) models.FundraiserResponse {
	return models.FundraiserResponse{
		ID:        f.ID,
		TeamID:    f.TeamID,
		Name:      f.Name,
		Goal:      money(f.GoalCents),
		Raised:    money(f.RaisedCents),
		CreatedAt: f.CreatedAt,
	}
}

func toTicketResponse(t *repository.Ticket) models.TicketResponse {
	return models.TicketResponse{
		ID:        t.ID,
		EventID:   t.EventID,
		Amount:    money(t.AmountCents),
		CreatedAt: t.CreatedAt,
	}
}
