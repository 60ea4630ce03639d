package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
)

type FundraisingHandler struct {
	fundraising service.FundraisingService
}

func (h *FundraisingHandler) CreateEvent(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.fundraising.CreateEvent(c.Request.Context(), c.Param("id"), userID, req.Name, req.TicketPrice)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

func (h *FundraisingHandler) CreateFundraiser(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateFundraiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	f, err := h.fundraising.CreateFundraiser(c.Request.Context(), c.Param("id"), userID, req.Name, req.Goal)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFundraiserResponse(f))
}

// GetFundraiser is public so donation pages can show progress.
func (h *FundraisingHandler) GetFundraiser(c *gin.Context) {
	f, err := h.fundraising.GetFundraiser(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFundraiserResponse(f))
}

func (h *FundraisingHandler) MyTickets(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	tickets, err := h.fundraising.ListTickets(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.TicketResponse, len(tickets))
	for i, t := range tickets {
		response[i] = toTicketResponse(t)
	}
	c.JSON(http.StatusOK, response)
}
