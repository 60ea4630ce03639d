// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/api"
	"github.com/Marga-Ghale/teamfund-backend/internal/config"
	"github.com/Marga-Ghale/teamfund-backend/internal/cron"
	"github.com/Marga-Ghale/teamfund-backend/internal/db"
	"github.com/Marga-Ghale/teamfund-backend/internal/email"
	"github.com/Marga-Ghale/teamfund-backend/internal/logger"
	"github.com/Marga-Ghale/teamfund-backend/internal/payment"
	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/seed"
	"github.com/Marga-Ghale/teamfund-backend/internal/service"
	"github.com/Marga-Ghale/teamfund-backend/internal/socket"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logr.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logr); err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.Pool(), logr)
	if err != nil {
		logr.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	repos := repository.NewRepositories(pg.Pool)

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var claims service.EventClaimer
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(ctx, cfg.RedisURL, logr)
		if err != nil {
			logr.Warn("continuing without Redis event claims", zap.Error(err))
		} else {
			defer redisDB.Close()
			claims = redisDB
		}
	}

	// ============================================
	// Payment processor
	// ============================================
	var processor payment.Processor = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		processor = payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Timeout:       cfg.CheckoutTimeout,
			MaxRetries:    2,
		}, logr.Named("stripe"))
	} else {
		logr.Warn("STRIPE_SECRET_KEY not set, checkout is disabled")
	}

	// ============================================
	// Initialize Email (optional)
	// ============================================
	var mailer service.Mailer
	emailStatus := "disabled"
	if cfg.SMTPHost != "" {
		emailSvc := email.NewService(&email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		}, logr.Named("email"))
		queue := email.NewQueue(emailSvc, 3, logr.Named("email"))
		defer queue.Stop()
		mailer = queue
		emailStatus = "enabled"
	} else {
		logr.Warn("SMTP_HOST not set, invitation links must be shared manually")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub(logr.Named("ws"))
	go hub.Run(ctx)

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:    cfg,
		Repos:     repos,
		Processor: processor,
		Notifier:  socket.NewBroadcaster(hub),
		Mailer:    mailer,
		Claims:    claims,
		Logger:    logr,
	})

	// ============================================
	// Seed Data (for development)
	// ============================================
	if !cfg.IsProduction() {
		admin := seed.Admin{Email: cfg.SeedAdminEmail, Password: cfg.SeedAdminPassword}
		if err := seed.SeedAdmin(ctx, repos.UserRepo, admin, logr.Named("seed")); err != nil {
			logr.Error("seeding failed", zap.Error(err))
		}
	}

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	scheduler := cron.NewScheduler(services, time.Now, logr.Named("cron"))
	if err := scheduler.Start(cron.Schedules{
		Dues:         cfg.DuesCron,
		Reminders:    cfg.ReminderCron,
		SessionSweep: cfg.SessionSweepCron,
	}); err != nil {
		logr.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// ============================================
	// Router
	// ============================================
	wsHandler := socket.NewHandler(hub, services.Auth, cfg.AllowedOrigins, logr.Named("ws"))
	router := api.NewRouter(api.RouterDeps{
		Config:    cfg,
		Services:  services,
		WebSocket: wsHandler.HandleWebSocket,
		Logger:    logr,
		Health: func() gin.H {
			return gin.H{
				"database":   "connected",
				"cache":      cacheStatus(redisDB),
				"payments":   paymentStatus(cfg),
				"email":      emailStatus,
				"ws_clients": hub.GetConnectedClientsCount(),
			}
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
	logr.Info("server exited")
}

func cacheStatus(r *db.RedisDB) string {
	if r == nil {
		return "disabled"
	}
	if err := r.Client.Ping(context.Background()).Err(); err != nil {
		return "unreachable"
	}
	return "connected"
}

func paymentStatus(cfg *config.Config) string {
	if cfg.StripeSecretKey == "" {
		return "disabled"
	}
	return "stripe"
}
