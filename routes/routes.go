package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/fatoldnerd/sedemoscoring/controllers"
	"github.com/fatoldnerd/sedemoscoring/middleware"
	"github.com/fatoldnerd/sedemoscoring/models"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "SE Demo Scoring API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Team management
			protected.GET("/team", middleware.RequireRole(models.RoleManager), controllers.GetTeam)
			protected.PUT("/users/:id/manager", middleware.RequireRole(models.RoleAdmin), controllers.AssignManager)

			// Call reviews
			reviews := protected.Group("/call-reviews")
			{
				reviews.POST("", middleware.RequireRole(models.RoleSE, models.RoleManager), controllers.CreateCallReview)
				reviews.GET("", controllers.GetCallReviews)
				reviews.GET("/:id", controllers.GetCallReview)
				reviews.GET("/:id/coaching", controllers.GetCoachingView)
				reviews.POST("/:id/complete", middleware.RequireRole(models.RoleManager), controllers.CompleteCallReview)

				// Scorecards
				reviews.GET("/:id/scorecards", controllers.GetScorecards)
				reviews.POST("/:id/scorecards/:scorerType/submit", controllers.SubmitScorecard)
			}

			// Analytics
			analytics := protected.Group("/analytics")
			{
				analytics.GET("/summary", controllers.GetAnalyticsSummary)
			}
		}
	}
}
