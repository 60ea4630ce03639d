package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/api/handlers"
	"github.com/Marga-Ghale/teamfund-backend/internal/api/middleware"
	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// RouterDeps are the pieces the HTTP surface is assembled from.
// WebSocket and Health may be nil.
type RouterDeps struct {
	Config    *config.Config
	Services  *service.Services
	WebSocket gin.HandlerFunc
	Health    func() gin.H
	Logger    *zap.Logger
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		// Credentials cannot be combined with a wildcard origin.
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))

	r.Use(cors.New(corsConfig(d.Config.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "healthy", "timestamp": time.Now()}
		if d.Health != nil {
			for k, v := range d.Health() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	h := handlers.NewHandlers(d.Services, d.Logger)
	authRequired := middleware.AuthMiddleware(d.Services.Auth, d.Logger)
	optionalAuth := middleware.OptionalAuthMiddleware(d.Services.Auth)

	api := r.Group("/api")
	{
		// ============================================
		// Public routes (no auth required)
		// ============================================
		api.POST("/auth/login", h.Auth.Login)
		api.GET("/invites/preview", h.Invitation.Preview)
		api.POST("/invites/redeem", h.Invitation.Redeem)
		api.GET("/fundraisers/:id", h.Fundraising.GetFundraiser)
		api.POST("/payments/webhook", h.Payment.Webhook)
		api.POST("/checkout", optionalAuth, h.Payment.Checkout)

		if d.WebSocket != nil {
			api.GET("/ws", d.WebSocket)
		}

		// ============================================
		// Protected routes
		// ============================================
		protected := api.Group("")
		protected.Use(authRequired)
		{
			protected.GET("/auth/me", h.Auth.Me)

			protected.POST("/teams", middleware.RequireRole(d.Services.Access, types.RoleMasterAdmin), h.Team.Create)

			teams := protected.Group("/teams/:id")
			{
				teams.GET("", h.Team.Get)
				teams.GET("/roster", h.Team.Roster)
				teams.PUT("/athletes/:athleteId/parent", h.Team.LinkParent)

				teams.POST("/invites", h.Invitation.Create)
				teams.GET("/invites", h.Invitation.List)

				teams.POST("/dues", h.Dues.Generate)
				teams.GET("/dues", h.Dues.ListTeam)

				teams.POST("/events", h.Fundraising.CreateEvent)
				teams.POST("/fundraisers", h.Fundraising.CreateFundraiser)
			}

			protected.DELETE("/invites/:id", h.Invitation.Revoke)
			protected.POST("/invites/:id/resend", h.Invitation.Resend)

			protected.GET("/dues/me", h.Dues.ListMine)
			protected.POST("/dues/:id/confirm", h.Dues.Confirm)

			protected.GET("/tickets/me", h.Fundraising.MyTickets)
		}
	}

	return r
}
