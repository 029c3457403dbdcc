package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	_ "github.com/Joello61/candi-tracker-api/docs"
	"github.com/Joello61/candi-tracker-api/internal/config"
	"github.com/Joello61/candi-tracker-api/internal/handlers"
	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/middleware"
	"github.com/Joello61/candi-tracker-api/internal/pdf"
	"github.com/Joello61/candi-tracker-api/internal/realtime"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
	"github.com/Joello61/candi-tracker-api/internal/routes"
	"github.com/Joello61/candi-tracker-api/internal/scheduler"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

// Run wires the service from the config at configPath and blocks until SIGINT or SIGTERM.
func Run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("close database", nil)
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	// === Redis (rate limiting only) ===
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("close redis", nil)
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, requests pass unlimited until it recovers", nil)
		}
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	codeRepo := repositories.NewVerificationCodeRepository(db)
	attemptRepo := repositories.NewVerificationAttemptRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	settingRepo := repositories.NewNotificationSettingRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	interviewRepo := repositories.NewInterviewRepository(db)

	// === Channels ===
	emailSender, err := services.NewEmailSender(ctx, cfg.Email, log)
	if err != nil {
		return err
	}
	smsSender, err := services.NewSMSSender(ctx, cfg.SMS, log)
	if err != nil {
		return err
	}
	hub := realtime.NewNotificationHub(log)

	// === Services ===
	codes := services.NewVerificationService(codeRepo, attemptRepo, emailSender, smsSender, log, services.VerificationOptions{
		BcryptCost:       cfg.Verification.BcryptCost,
		SendTimeout:      cfg.Notifications.SendTimeout,
		RefundFailedSend: cfg.Verification.RefundFailedSend,
	})
	settings := services.NewNotificationSettingsService(settingRepo)
	notifications := services.NewNotificationService(notificationRepo, settingRepo, userRepo, emailSender, smsSender, hub,
		log, cfg.Notifications.SendTimeout, nil)
	auth := services.NewAuthService(userRepo, settings, codes, services.NewCaptchaVerifier(cfg.Captcha, log), log, services.AuthOptions{
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	apps := services.NewApplicationService(appRepo, interviewRepo, notifications, cfg.Notifications.AppURL, nil)
	reports := services.NewReportService(appRepo, interviewRepo, userRepo, pdf.NewReportGenerator(fontPath(cfg.Reports.FontPath, log)), nil)

	// === Scheduler ===
	sched := scheduler.New(log, time.UTC)
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewJobs(scheduler.Deps{
			Interviews:    interviewRepo,
			Applications:  appRepo,
			Users:         userRepo,
			Settings:      settings,
			Notifications: notifications,
			Codes:         codes,
		}, cfg.Notifications, log, nil)
		if err := jobs.Register(sched, cfg.Scheduler); err != nil {
			return err
		}
	}

	// === Gin ===
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:          handlers.NewAuthHandler(auth),
		User:          handlers.NewUserHandler(auth),
		Verify:        handlers.NewVerifyHandler(codes, userRepo),
		Notification:  handlers.NewNotificationHandler(notifications, settings, hub),
		Application:   handlers.NewApplicationHandler(apps),
		Report:        handlers.NewReportHandler(reports),
		Health:        handlers.NewHealthHandler(db),
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		RateLimiter:   limiter,
		EnableSwagger: cfg.Server.Swagger,
	})

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	sched.Start()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("server failed", nil)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = fmt.Errorf("http shutdown: %w", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	log.Info("server stopped", nil)
	return shutdownErr
}

func fontPath(path string, log logger.Logger) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		log.Warn("report font not found, using Helvetica", map[string]interface{}{"path": path})
		return ""
	}
	return path
}
