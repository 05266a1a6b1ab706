package routes

import (
	"net/http"
	"time"

	"quizapi/handlers"
	"quizapi/middleware"
	"quizapi/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	quizHandler *handlers.QuizHandler,
	attemptHandler *handlers.AttemptHandler,
	authService *services.AuthService,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) {
	// Auth routes (public)
	router.POST("/auth/token", authHandler.Login)

	// Protected routes
	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		// User administration
		users := protected.Group("/users")
		users.Use(middleware.AdminRequired())
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateUser)
		}

		// Quiz routes
		quizzes := protected.Group("/quizzes")
		{
			quizzes.GET("/", middleware.CacheResponse(redisClient, cacheTTL), quizHandler.ListQuizzes)
			quizzes.POST("/", middleware.AdminRequired(), quizHandler.CreateQuiz)
			quizzes.PATCH("/:id", middleware.AdminRequired(), quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", middleware.AdminRequired(), quizHandler.DeleteQuiz)
			quizzes.GET("/:id/forstaff", middleware.AdminRequired(), quizHandler.StaffDetail)

			quizzes.GET("/:id/foruser", attemptHandler.UserDetail)
			quizzes.POST("/:id/attempt", attemptHandler.StartAttempt)
			quizzes.POST("/:id/answer", attemptHandler.SaveAnswers)
			quizzes.POST("/:id/submit", attemptHandler.Submit)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
