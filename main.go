package main

import (
	"log"
	"os"

	"quizapi/config"
	"quizapi/handlers"
	"quizapi/middleware"
	"quizapi/models"
	"quizapi/routes"
	"quizapi/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "quizapi",
		Short: "Quiz management API server",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables and seed the initial admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runServer() error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return err
	}

	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(db)
	quizService := services.NewQuizService(db)
	attemptService := services.NewAttemptService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	quizHandler := handlers.NewQuizHandler(quizService)
	attemptHandler := handlers.NewAttemptHandler(attemptService)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, authHandler, userHandler, quizHandler, attemptHandler,
		authService, redisClient, cfg.CacheTTL)

	log.Printf("Server starting on port %s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

func runMigrate() error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.QuizConfig{},
		&models.Question{},
		&models.Choice{},
		&models.QuizAttempt{},
		&models.Answer{},
	)
	if err != nil {
		return err
	}
	log.Println("Database migrated")

	return seedAdmin(db, cfg)
}

// seedAdmin creates the initial admin account when ADMIN_NAME, ADMIN_EMAIL
// and ADMIN_PASSWORD are configured and the account does not exist yet.
func seedAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminName == "" || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("name = ?", cfg.AdminName).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: string(hashed),
		IsAdmin:  true,
	}

	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin user %s", cfg.AdminName)
	return nil
}
