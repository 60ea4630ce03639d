package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/models"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// maxWebhookBody caps the raw event body.
const maxWebhookBody = 65536

type PaymentHandler struct {
	payments service.PaymentService
	log      *zap.Logger
}

// Checkout opens (or reuses) a hosted checkout session. Authentication is
// optional; anonymous payers must supply an email.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	intent := service.CheckoutIntent{
		TargetType: types.TargetType(req.TargetType),
		TargetID:   req.TargetID,
		Amount:     req.Amount,
		PayerEmail: req.Email,
	}
	if userID := middleware.GetUserID(c); userID != "" {
		intent.PayerUserID = &userID
	}

	result, err := h.payments.CreateCheckoutSession(c.Request.Context(), intent)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, models.CheckoutResponse{
		SessionID:   result.SessionID,
		RedirectURL: result.RedirectURL,
		Reused:      result.Reused,
	})
}

// Webhook receives processor events. The signature covers the raw body, so it
// is read unparsed. Any non-2xx makes the processor redeliver.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	err = h.payments.HandleCompletion(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	default:
		h.log.Error("webhook processing failed", zap.Error(err))
		handleServiceError(c, err)
	}
}
