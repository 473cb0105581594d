package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"hospital-auth/internal/config"
	"hospital-auth/internal/db"
	apihttp "hospital-auth/internal/http"
	"hospital-auth/internal/notify"
	"hospital-auth/internal/repository"
	"hospital-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	ctxPing, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(ctxPing, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	cancelPing()

	userRepo := repository.NewPgUserRepository(pool)
	codeRepo := repository.NewPgVerificationTokenRepository(pool)
	sessionRepo := repository.NewPgSessionRepository(pool)

	tokenSvc, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		logger.Fatal("token service init", zap.Error(err))
	}

	emailSender := notify.NewDisabledEmailSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.CompanyName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	smsSender := notify.NewDisabledSMSSender("sms sender not configured")
	if cfg.SMSGatewayURL != "" {
		sender, err := notify.NewGatewaySMSSender(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSUserID, cfg.SMSPassword, cfg.SMSSenderID, cfg.CompanyName)
		if err != nil {
			logger.Warn("sms sender init failed", zap.Error(err))
		} else {
			smsSender = sender
		}
	}

	var limiter service.DispatchLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisDispatchLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewDispatchLimiter(10*time.Minute, 3)
	}

	codeSvc := service.NewCodeService(codeRepo)
	authSvc := service.NewAuthService(logger, userRepo, sessionRepo, codeSvc, tokenSvc, emailSender, smsSender, limiter)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	adminHandler := apihttp.NewAdminHandler(logger, authSvc)
	router := apihttp.NewRouter(logger, tokenSvc, authHandler, adminHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
