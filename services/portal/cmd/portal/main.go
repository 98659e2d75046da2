package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meridian/internal/util"
	"meridian/pkg/notify"
	"meridian/pkg/queue"
	"meridian/services/portal/internal/app"
	"meridian/services/portal/internal/config"
	"meridian/services/portal/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseTTL(cfg.SessionTTL, 15*time.Minute)
	if err != nil {
		log.Fatalf("parse sessionTTL: %v", err)
	}
	refreshTTL, err := config.ParseTTL(cfg.RefreshTTL, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("parse refreshTTL: %v", err)
	}

	appCfg := app.Config{
		DatabaseURL:        cfg.DatabaseURL,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		MinioEndpoint:      cfg.MinioEndpoint,
		MinioAccessKey:     cfg.MinioAccessKey,
		MinioSecretKey:     cfg.MinioSecretKey,
		MinioBucket:        cfg.MinioBucket,
		MinioUseSSL:        cfg.MinioUseSSL,
		AssetPublicBaseURL: cfg.AssetPublicBaseURL,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		JWTAudience:        cfg.JWTAudience,
		SessionTTL:         sessionTTL,
		RefreshTTL:         refreshTTL,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}

	if strings.TrimSpace(cfg.AMQPURL) != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.LeadExchange)
		if err != nil {
			log.Fatalf("connect amqp: %v", err)
		}
		defer publisher.Close()
		appCfg.Leads = publisher
	}

	if strings.TrimSpace(cfg.RedisAddr) != "" && strings.TrimSpace(cfg.IntakeStream) != "" {
		intakeQueue, err := queue.NewRedisIntakeQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.IntakeStream,
		})
		if err != nil {
			log.Fatalf("init intake queue: %v", err)
		}
		appCfg.IntakeQueue = intakeQueue
		intakeQueue.Start(context.Background(), 2, func(_ context.Context, job queue.Job) error {
			slog.Info("intake submission processed", "job_id", job.ID, "submission_id", job.SubmissionID, "kind", job.Kind)
			return nil
		})
	}

	application, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	srv, err := server.New(server.Config{
		App:                      application,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		IntakeRateLimitPerMinute: cfg.IntakeRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		AllowedExtensions:        cfg.AllowedExtensions,
		AllowedOrigins:           cfg.AllowedOrigins,
		TrustedProxies:           cfg.TrustedProxies,
		SecureCookies:            cfg.SecureCookies,
	})
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	slog.Info("portal server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
