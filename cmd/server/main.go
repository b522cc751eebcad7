package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/signup-verification/configs"
	"github.com/avatarctic/signup-verification/internal/application/services"
	"github.com/avatarctic/signup-verification/internal/core/ports"
	"github.com/avatarctic/signup-verification/internal/infrastructure/db"
	"github.com/avatarctic/signup-verification/internal/infrastructure/email"
	"github.com/avatarctic/signup-verification/internal/infrastructure/health"
	"github.com/avatarctic/signup-verification/internal/infrastructure/httpserver"
	"github.com/avatarctic/signup-verification/internal/infrastructure/redis"
	"github.com/avatarctic/signup-verification/internal/infrastructure/repositories"
	"github.com/avatarctic/signup-verification/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting signup verification service...")

	opts, err := cfg.VerificationOptions()
	if err != nil {
		logger.Fatal("Invalid verification options: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checkers []ports.HealthChecker

	var database *db.Database
	if cfg.NeedsDatabase() {
		database, err = db.NewDatabaseWithConfig(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database: ", err)
		}
		defer database.Close()
		logger.Info("Connected to database successfully")

		if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("Failed to run migrations: ", err)
		}
		checkers = append(checkers, health.NewDBHealthChecker(database))
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: ", err)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis successfully")
		checkers = append(checkers, health.NewRedisHealthChecker(redisClient))
	}

	// Permanent store, cached in Redis when available
	var permanent ports.PermanentUserRepository
	switch cfg.Storage.PermanentBackend {
	case config.BackendPostgres:
		permanent = repositories.NewUserRepository(database, logger)
	default:
		permanent = repositories.NewPermanentMemoryRepository()
	}
	if redisClient != nil {
		permanent = repositories.NewCachingUserRepository(permanent, redis.NewRedisCache(redisClient, "appcache"), cfg.Redis.CacheTTL)
	}

	// Staging store; Redis expires records through key TTLs, the others need the sweeper
	var (
		staged  ports.StagedRecordRepository
		sweeper ports.ExpiredRecordSweeper
	)
	switch cfg.Storage.StagingBackend {
	case config.BackendRedis:
		staged = repositories.NewStagedRedisRepository(redisClient, logger)
	case config.BackendPostgres:
		repo := repositories.NewStagedPostgresRepository(database, logger)
		staged, sweeper = repo, repo
	default:
		repo := repositories.NewStagedMemoryRepository()
		staged, sweeper = repo, repo
	}
	logger.WithFields(logrus.Fields{
		"staging_backend":   cfg.Storage.StagingBackend,
		"permanent_backend": cfg.Storage.PermanentBackend,
	}).Info("Storage backends selected")

	notifier, err := email.NewNotifier(email.Config{
		Provider:       cfg.Email.Provider,
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		From:           cfg.Email.From,
		SMTP: email.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			TLS:      cfg.Email.SMTPTLS,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			Timeout:  cfg.Email.SMTPTimeout,
		},
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email notifier: ", err)
	}

	var svcOpts []services.VerificationServiceOption
	if cfg.Verification.HashPassword {
		svcOpts = append(svcOpts, services.WithHasher(utils.NewBcryptHasher(opts.PasswordField, cfg.Verification.BcryptCost)))
	}
	verificationService := services.NewVerificationService(
		opts,
		services.NewStagingStore(staged, permanent, opts.Expiration, logger),
		permanent,
		services.NewMailDispatcher(notifier, logger),
		utils.NewRandomTokenGenerator(),
		logger,
		svcOpts...,
	)

	var sessionIssuer ports.SessionIssuer
	if cfg.JWT.Secret != "" {
		issuer, err := services.NewJWTSessionIssuer(&cfg.JWT, logger)
		if err != nil {
			logger.Fatal("Failed to initialize session issuer: ", err)
		}
		sessionIssuer = issuer
	}

	var rateLimitRepo ports.RateLimitRepository
	if redisClient != nil {
		rateLimitRepo = repositories.NewRateLimitRedisRepository(redisClient)
	} else {
		rateLimitRepo = repositories.NewRateLimitMemoryRepository()
	}
	rateLimiterService := services.NewRateLimiterService(rateLimitRepo, &services.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BurstMultiplier:   cfg.RateLimit.BurstMultiplier,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         cfg.RateLimit.KeyPrefix,
	}, logger)

	sweepDone := make(chan struct{})
	if sweeper != nil {
		go func() {
			defer close(sweepDone)
			services.NewStagingSweeper(sweeper, cfg.Storage.SweepInterval, logger).Run(ctx)
		}()
	} else {
		close(sweepDone)
	}

	server := httpserver.NewServer(&httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Environment:    cfg.Server.Environment,
		ExposeToken:    cfg.Verification.ExposeToken,
	}, logger, httpserver.ServerDeps{
		VerificationService: verificationService,
		SessionIssuer:       sessionIssuer,
		RateLimiterService:  rateLimiterService,
		HealthCheckers:      health.Checkers(checkers...),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped: ", err)
		}
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: ", err)
	}
	<-sweepDone
	// confirmation emails already in flight still go out
	verificationService.Wait()

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
