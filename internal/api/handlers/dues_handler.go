package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
)

// ============================================
// Dues Handler
// ============================================

type DuesHandler struct {
	dues service.DuesService
}

// Generate bills every athlete on the team for one month. Safe to repeat.
func (h *DuesHandler) Generate(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.GenerateDuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.dues.GenerateDues(c.Request.Context(), service.GenerateDuesInput{
		TeamID:   c.Param("id"),
		Amount:   req.Amount,
		DueMonth: req.DueMonth,
		IssuerID: userID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *DuesHandler) ListTeam(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	dues, err := h.dues.ListTeamDues(c.Request.Context(), c.Param("id"), c.Query("month"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDueResponses(dues))
}

// ListMine returns dues where the caller is the athlete or the linked parent.
func (h *DuesHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	dues, err := h.dues.ListDuesForUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDueResponses(dues))
}

// Confirm records an offline payment.
func (h *DuesHandler) Confirm(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	due, err := h.dues.ConfirmManualPayment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDueResponse(due))
}
