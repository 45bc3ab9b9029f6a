package main

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/refwise/refwise_backend/config"
	"github.com/refwise/refwise_backend/controllers"
	"github.com/refwise/refwise_backend/middleware"
	"github.com/refwise/refwise_backend/repositories"
	"github.com/refwise/refwise_backend/routes"
	"github.com/refwise/refwise_backend/services"
	"github.com/refwise/refwise_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to Redis (optional, referral code lookups fall back to Mongo)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB(cfg)
	db := client.Database(cfg.DBName)

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Initialize repositories
	profileRepo := repositories.NewProfileRepository(db)
	assignmentRepo := repositories.NewAssignmentRepository(db)
	referralRepo := repositories.NewReferralRepository(db)
	commissionRepo := repositories.NewCommissionRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	payoutRepo := repositories.NewPayoutRepository(db)

	// Initialize services
	attributionSvc := services.NewAttributionService(assignmentRepo, profileRepo, redisClient)
	referralSvc := services.NewReferralService(attributionSvc, referralRepo, assignmentRepo)
	commissionSvc := services.NewCommissionService(attributionSvc, referralSvc, profileRepo, assignmentRepo, referralRepo, commissionRepo, wsHub)
	adjustmentSvc := services.NewAdjustmentService(commissionRepo, referralRepo, assignmentRepo, auditRepo, wsHub)
	payoutSvc := services.NewPayoutService(payoutRepo, assignmentRepo, profileRepo, commissionRepo, auditRepo)

	var mailer services.QualificationMailer
	if m := services.NewMailerService(services.SMTPSettings{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}); m.Configured() {
		mailer = m
	} else {
		log.Println("SMTP not configured, qualification emails disabled")
	}

	sweeperSvc := services.NewSweeperService(commissionRepo, referralRepo, assignmentRepo, mailer, wsHub)

	// Initialize controllers
	webhookController := controllers.NewWebhookController(commissionSvc, adjustmentSvc, referralSvc, cfg.SiteURL)
	referralController := controllers.NewReferralController(assignmentRepo, commissionRepo, profileRepo, payoutSvc, cfg.SiteURL, cfg.DefaultProfileID)
	profileController := controllers.NewProfileController(profileRepo, assignmentRepo, auditRepo)
	assignmentController := controllers.NewAssignmentController(assignmentRepo, profileRepo, auditRepo, attributionSvc, payoutSvc)

	// Create a new Echo instance
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Refwise commission core is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Register routes
	routes.RegisterWebhookRoutes(e, webhookController)
	routes.RegisterReferralRoutes(e, referralController, wsHub)
	routes.RegisterAdminRoutes(e, profileController, assignmentController)

	// Background qualification sweeps
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeperSvc.Run(ctx, cfg.SweepInterval)

	// Optional Kafka ingestion alongside the webhook endpoints
	if cfg.KafkaBootstrapServers != "" {
		consumer, err := services.NewPaymentEventConsumer(cfg.KafkaBootstrapServers, cfg.KafkaGroupID, cfg.KafkaPaymentTopic, commissionSvc, adjustmentSvc, referralSvc)
		if err != nil {
			log.Fatalf("Failed to start Kafka consumer: %v", err)
		}
		go consumer.Run(ctx)
		log.Printf("Consuming payment events from topic %s", cfg.KafkaPaymentTopic)
	}

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
