package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/controllers"
	"github.com/fatoldnerd/sedemoscoring/middleware"
	"github.com/fatoldnerd/sedemoscoring/models"
	"github.com/fatoldnerd/sedemoscoring/routes"
	"github.com/fatoldnerd/sedemoscoring/services"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize logging and database
	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}
	config.InitDB(
		&models.User{},
		&models.Role{},
		&models.CallReview{},
		&models.Scorecard{},
	)

	// Wire the scoring workflow
	scorecards := services.NewScorecardRepository(config.DB)
	reviews := services.NewCallReviewRepository(config.DB)
	workflow := services.NewWorkflowService(scorecards, reviews).
		WithNotifier(services.NewMailNotifier(config.DB))

	// AI scoring worker: consumes review-created jobs from the queue
	queue, err := services.NewScoringQueue()
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer queue.Close()

	llm, err := services.NewGeminiClient()
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	scorer := services.NewAIScoringService(llm, scorecards, workflow)
	worker := services.NewScoringWorker(reviews, scorer)
	if err := queue.Consume(worker.Handle); err != nil {
		log.Fatal("Failed to start scoring worker:", err)
	}

	controllers.Init(workflow, queue)

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Setup routes
	routes.SetupRoutes(router)

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
