package router

import (
	"log"

	"github.com/foodbridge/backend/internal/handlers"
	"github.com/foodbridge/backend/internal/middleware"
	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"github.com/foodbridge/backend/internal/services"
	"github.com/foodbridge/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, mongoDatabase string, firebaseApp *firebase.App) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.OrganizationCapacity{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	mongoDB := mgClient.Database(mongoDatabase)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	capacityRepo := repositories.NewPostgresCapacityRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	donationRepo := repositories.NewMongoDonationRepository(mongoDB)
	ledgerRepo := repositories.NewMongoLedgerRepository(mongoDB)

	// --- Initialize Services ---
	notifier := services.NewNotifier(notificationRepo, userRepo, firebaseApp.MessagingClient)
	rewardService := services.NewRewardService(ledgerRepo)
	certificateService := services.NewCertificateService(services.LogMailer{})
	supervisor := services.NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)
	matcher := services.NewMatcher(donationRepo, capacityRepo, notifier, supervisor)
	supervisor.SetMatcher(matcher)
	log.Println("Matching and timeout services wired.")

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, capacityRepo, firebaseApp.AuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterUserRoutes(api)
	log.Println("User profile routes configured.")

	// Donation lifecycle routes
	donationHandler := handlers.NewDonationHandler(donationRepo, matcher, supervisor, notifier)
	donationHandler.RegisterDonationRoutes(api)
	log.Println("Donation routes configured.")

	// Assignment flow routes
	assignmentHandler := handlers.NewAssignmentHandler(
		donationRepo, userRepo, capacityRepo, rewardService, certificateService, supervisor, notifier)
	assignmentHandler.RegisterAssignmentRoutes(api)
	log.Println("Assignment routes configured.")

	// Organization capacity routes
	capacityHandler := handlers.NewCapacityHandler(capacityRepo)
	capacityGroup := api.Group("", middleware.RequireRole(models.RoleOrganization, models.RoleAdmin))
	capacityHandler.RegisterCapacityRoutes(capacityGroup)
	log.Println("Capacity routes configured.")

	// Gamification routes
	gamificationHandler := handlers.NewGamificationHandler(ledgerRepo, userRepo)
	gamificationHandler.RegisterGamificationRoutes(api)
	log.Println("Gamification routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
}
