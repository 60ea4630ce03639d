package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// InvitationHandler exposes HTTP endpoints for invitation flows.
type InvitationHandler struct {
	invitations service.InvitationService
}

// POST /api/teams/:id/invites
func (h *InvitationHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	issued, err := h.invitations.IssueInvite(c.Request.Context(), service.IssueInviteInput{
		Email:    req.Email,
		Role:     types.Role(req.Role),
		TeamID:   c.Param("id"),
		IssuerID: userID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toInviteResponse(issued.Invite, issued.Link))
}

// GET /api/teams/:id/invites
func (h *InvitationHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	invites, err := h.invitations.ListTeamInvites(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.InviteResponse, len(invites))
	for i, inv := range invites {
		response[i] = toInviteResponse(inv, "")
	}
	c.JSON(http.StatusOK, response)
}

// DELETE /api/invites/:id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.invitations.RevokeInvite(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/invites/:id/resend
func (h *InvitationHandler) Resend(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	issued, err := h.invitations.ResendInvite(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInviteResponse(issued.Invite, issued.Link))
}

// GET /api/invites/preview?token=
func (h *InvitationHandler) Preview(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	preview, err := h.invitations.PreviewInvite(c.Request.Context(), token)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InvitePreviewResponse{
		TeamName:  preview.TeamName,
		Role:      string(preview.Role),
		Email:     preview.Email,
		Status:    string(preview.Status),
		ExpiresAt: preview.ExpiresAt,
		Expired:   preview.Expired,
	})
}

// POST /api/invites/redeem
func (h *InvitationHandler) Redeem(c *gin.Context) {
	var req models.RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	redemption, err := h.invitations.RedeemInvite(c.Request.Context(), req.Token, service.AccountDetails{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.AuthResponse{
		User:        toUserResponse(redemption.User, redemption.Membership.TeamID),
		AccessToken: redemption.AccessToken,
	})
}
