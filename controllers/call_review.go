package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
	"github.com/fatoldnerd/sedemoscoring/services"
	"github.com/fatoldnerd/sedemoscoring/utils"
)

// CreateCallReview creates a new call review, provisions its three blank
// scorecards and queues the AI scoring job. SEs create their own reviews;
// managers create on behalf of a team SE via se_id.
func CreateCallReview(c *gin.Context) {
	type CreateCallReviewRequest struct {
		CustomerName string `json:"customer_name" binding:"required"`
		CallDate     string `json:"call_date" binding:"required"`
		CallLink     string `json:"call_link"`
		Transcript   string `json:"transcript"`
		SeID         int    `json:"se_id"` // manager-initiated reviews only
	}

	var req CreateCallReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callDate, err := time.Parse("2006-01-02", req.CallDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_date must be in YYYY-MM-DD format"})
		return
	}

	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	var se models.User
	var managerID int
	if roleID.(int) == models.RoleManager {
		// A manager creates on behalf of one of their SEs.
		if req.SeID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "se_id is required when a manager creates a review"})
			return
		}
		if err := config.DB.
			Where("user_id = ? AND manager_id = ? AND delete_at IS NULL", req.SeID, userID).
			First(&se).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "SE not found in your team"})
			return
		}
		managerID = userID.(int)
	} else {
		if err := config.DB.Where("user_id = ? AND delete_at IS NULL", userID).First(&se).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if se.ManagerID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No manager assigned; ask an admin to assign one first"})
			return
		}
		managerID = *se.ManagerID
	}

	review := models.CallReview{
		SeID:         se.UserID,
		ManagerID:    managerID,
		CustomerName: utils.SanitizeInput(req.CustomerName),
		CallDate:     callDate,
		CallLink:     utils.SanitizeInput(req.CallLink),
		Transcript:   req.Transcript,
	}

	reviews := services.NewCallReviewRepository(config.DB)
	if err := reviews.Create(c.Request.Context(), &review); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call review"})
		return
	}

	// The AI scorer is fire-and-forget; a publish failure leaves the review
	// pending and is only logged, like any other async scoring failure.
	if scoringQueue != nil {
		if err := scoringQueue.Publish(c.Request.Context(), services.ScoringJob{CallReviewID: review.CallReviewID}); err != nil {
			log.Printf("failed to queue AI scoring for review %s: %v", review.CallReviewID, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"call_review": review,
	})
}

// GetCallReviews lists call reviews visible to the caller: SEs see their own,
// managers see their team's (optionally filtered by ?se_id=), admins see all.
func GetCallReviews(c *gin.Context) {
	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	var reviews []models.CallReview
	query := config.DB.Preload("Se").Preload("Manager").
		Where("call_reviews.delete_at IS NULL").
		Order("create_at DESC")

	switch roleID.(int) {
	case models.RoleManager:
		query = query.Where("manager_id = ?", userID)
		if seID := c.Query("se_id"); seID != "" {
			query = query.Where("se_id = ?", seID)
		}
	case models.RoleAdmin:
		// no extra filter
	default:
		query = query.Where("se_id = ?", userID)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Find(&reviews).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch call reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_reviews": reviews,
		"total":        len(reviews),
	})
}

// GetCallReview returns a single call review by ID.
func GetCallReview(c *gin.Context) {
	review, ok := loadVisibleReview(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_review": review,
	})
}

// CompleteCallReview archives a coached review. Manager only; the review must
// be ready for coaching.
func CompleteCallReview(c *gin.Context) {
	review, ok := loadVisibleReview(c)
	if !ok {
		return
	}

	if err := workflowService.MarkCompleted(c.Request.Context(), review.CallReviewID); err != nil {
		if errors.Is(err, services.ErrReviewNotCoachReady) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete call review"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Call review completed"})
}

// GetCoachingView returns the review with all three submitted scorecards side
// by side, for the coaching session.
func GetCoachingView(c *gin.Context) {
	review, ok := loadVisibleReview(c)
	if !ok {
		return
	}

	if review.Status != models.StatusReadyForCoaching && review.Status != models.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Call review is not ready for coaching"})
		return
	}

	var cards []models.Scorecard
	if err := config.DB.Where("call_review_id = ?", review.CallReviewID).Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scorecards"})
		return
	}

	byType := make(map[string]models.Scorecard, len(cards))
	for _, card := range cards {
		byType[card.ScorerType] = card
	}

	c.JSON(http.StatusOK, gin.H{
		"call_review": review,
		"scorecards": gin.H{
			"self":    byType[models.ScorerSelf],
			"manager": byType[models.ScorerManager],
			"ai":      byType[models.ScorerAI],
		},
		"rubric": models.Rubric,
	})
}

// loadVisibleReview fetches the :id review and enforces visibility. On
// failure it writes the error response and returns ok=false.
func loadVisibleReview(c *gin.Context) (*models.CallReview, bool) {
	id := c.Param("id")
	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	query := config.DB.Preload("Se").Preload("Manager").
		Where("call_review_id = ? AND call_reviews.delete_at IS NULL", id)

	switch roleID.(int) {
	case models.RoleManager:
		query = query.Where("manager_id = ?", userID)
	case models.RoleAdmin:
		// no extra filter
	default:
		query = query.Where("se_id = ?", userID)
	}

	var review models.CallReview
	if err := query.First(&review).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call review not found"})
		return nil, false
	}
	return &review, true
}
