package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/config"
	"medichat-server/internal/handlers"
	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/services"
	"medichat-server/internal/storage"
)

// Dependencies are the collaborators built in main and shared by the handlers.
type Dependencies struct {
	DB          *gorm.DB
	Config      *config.Config
	Logger      *zap.Logger
	Sessions    *services.SessionService
	Messages    *services.MessageService
	Chat        *services.ChatService
	Attachments storage.AttachmentStore
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	db, cfg, logger := deps.DB, deps.Config, deps.Logger

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg, logger)
	userHandler := handlers.NewUserHandler(db, logger)
	patientHandler := handlers.NewPatientHandler(db, logger)
	caseHandler := handlers.NewCaseHandler(db, logger)
	historyHandler := handlers.NewHistoryHandler(db, deps.Sessions, deps.Messages, logger)
	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Messages, deps.Attachments, cfg.Debug, logger)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg, db))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/refresh", authHandler.RefreshToken)
			authRoutesPrivate.POST("/logout", authHandler.Logout)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("", middleware.RoleAuthMiddleware(models.RoleAdmin), userHandler.GetUsers)
			userRoutes.GET("/me", userHandler.GetMe)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("", userHandler.UpdateMe)
			userRoutes.DELETE("", userHandler.DeleteMe)
		}

		patientRoutes := private.Group("/patient")
		{
			patientRoutes.GET("", patientHandler.GetPatients)
			patientRoutes.POST("", patientHandler.CreatePatient)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.PUT("/:id", patientHandler.UpdatePatient)
			patientRoutes.DELETE("/:id", patientHandler.DeletePatient)
		}

		caseRoutes := private.Group("/cases")
		{
			caseRoutes.GET("", caseHandler.GetCases)
			caseRoutes.POST("", caseHandler.CreateCase)
			caseRoutes.GET("/:id", caseHandler.GetCaseByID)
			caseRoutes.PUT("/:id", caseHandler.UpdateCase)
			caseRoutes.DELETE("/:id", caseHandler.DeleteCase)
		}

		historyRoutes := private.Group("/history")
		{
			historyRoutes.POST("/sessions", historyHandler.CreateSession)
			historyRoutes.PUT("/sessions/:id", historyHandler.EditSession)
			historyRoutes.GET("/sessions", historyHandler.ListSessions)
			historyRoutes.GET("/messages/:session_id", historyHandler.GetMessages)
			historyRoutes.DELETE("/messages/:session_id", historyHandler.DeleteMessages)
			historyRoutes.DELETE("/session/:session_id", historyHandler.DeleteSession)
		}

		chatRoutes := private.Group("/chat")
		{
			chatRoutes.POST("", chatHandler.Predict)
			chatRoutes.GET("/message/:id", chatHandler.GetMessage)
			chatRoutes.POST("/like-message/:id", chatHandler.LikeMessage)
			chatRoutes.POST("/submit-feedback/:id", chatHandler.SubmitFeedback)
			chatRoutes.PUT("/edit-feedback/:id", chatHandler.EditFeedback)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
