package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
)

// ============================================
// Auth Handler
// ============================================

type AuthHandler struct {
	authService service.AuthService
	directory   service.DirectoryService
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var teamID string
	if id, err := h.directory.Lookup(c.Request.Context(), user.ID); err == nil {
		teamID = id.TeamID
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		User:        toUserResponse(user, teamID),
		AccessToken: token,
	})
}

// Me returns the caller's identity with the role from their team membership.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	id, err := h.directory.Lookup(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{
		ID:     id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		Role:   string(id.Role),
		TeamID: id.TeamID,
	})
}
