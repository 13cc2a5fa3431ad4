package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeledger-api/internal/config"
	"github.com/noah-isme/gradeledger-api/internal/database"
	"github.com/noah-isme/gradeledger-api/internal/handler"
	"github.com/noah-isme/gradeledger-api/internal/middleware"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/repository"
	"github.com/noah-isme/gradeledger-api/internal/router"
	"github.com/noah-isme/gradeledger-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.GradeEvent{}, &models.AuditLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var notifier service.GradeNotifier
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		notifier = service.NewNATSGradeNotifier(natsConn, logger)
	} else {
		logger.Warn().Msg("nats url not configured, grade notifications disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	eventRepo := repository.NewGradeEventRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	currentGradeService := service.NewCurrentGradeService(eventRepo, redisClient, cfg.CurrentGradeCacheTTL, logger)
	ledgerService := service.NewLedgerService(eventRepo, currentGradeService, auditService, notifier, logger)
	modificationService, err := service.NewModificationService(ledgerService, eventRepo, validate, logger)
	if err != nil {
		log.Fatalf("failed to create modification service: %v", err)
	}

	gradeHandler := handler.NewGradeHandler(ledgerService, currentGradeService, validate, logger)
	modificationHandler := handler.NewModificationHandler(modificationService, validate, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradeHandler:        gradeHandler,
		ModificationHandler: modificationHandler,
		AuditHandler:        auditHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
