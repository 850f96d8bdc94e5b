package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
	"github.com/fatoldnerd/sedemoscoring/services"
)

// GetScorecards returns all scorecards of a call review.
func GetScorecards(c *gin.Context) {
	review, ok := loadVisibleReview(c)
	if !ok {
		return
	}

	var cards []models.Scorecard
	if err := config.DB.Where("call_review_id = ?", review.CallReviewID).Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scorecards"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scorecards": cards,
		"total":      len(cards),
	})
}

// SubmitScorecard records a human scorer's submission. SEs may only submit
// their self-score, managers only their manager score; the AI card is never
// submitted through this endpoint.
func SubmitScorecard(c *gin.Context) {
	type SubmitScorecardRequest struct {
		Scores   models.SectionScores `json:"scores" binding:"required"`
		Comments models.SectionText   `json:"comments"`
		Quotes   models.SectionText   `json:"quotes"`
	}

	review, ok := loadVisibleReview(c)
	if !ok {
		return
	}

	scorerType := c.Param("scorerType")
	roleID, _ := c.Get("roleID")

	switch scorerType {
	case models.ScorerSelf:
		if roleID.(int) != models.RoleSE {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the SE can submit the self-score"})
			return
		}
	case models.ScorerManager:
		if roleID.(int) != models.RoleManager {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the manager can submit the manager score"})
			return
		}
	case models.ScorerAI:
		c.JSON(http.StatusForbidden, gin.H{"error": "The AI scorecard is submitted automatically"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown scorer type"})
		return
	}

	var req SubmitScorecardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := workflowService.SubmitScorecard(c.Request.Context(), review.CallReviewID, scorerType,
		services.ScorecardSubmission{
			Scores:   req.Scores,
			Comments: req.Comments,
			Quotes:   req.Quotes,
		})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrScorecardAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": "Scorecard already submitted"})
		case errors.Is(err, services.ErrScorecardNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Scorecard not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit scorecard"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scorecard": card,
	})
}
