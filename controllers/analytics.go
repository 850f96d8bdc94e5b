package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
	"github.com/fatoldnerd/sedemoscoring/services"
)

type scorerAverages struct {
	Submitted       int                `json:"submitted"`
	AverageTotal    float64            `json:"average_total"`
	SectionAverages map[string]float64 `json:"section_averages"`
}

// GetAnalyticsSummary aggregates submitted scorecards for a manager's team:
// per SE and scorer type, the average total and per-section averages.
func GetAnalyticsSummary(c *gin.Context) {
	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	cardQuery := config.DB.Where("submitted_at IS NOT NULL")
	switch roleID.(int) {
	case models.RoleAdmin:
		if seID := c.Query("se_id"); seID != "" {
			cardQuery = cardQuery.Where("se_id = ?", seID)
		}
	case models.RoleManager:
		var teamIDs []int
		if err := config.DB.Model(&models.User{}).
			Where("manager_id = ? AND delete_at IS NULL", userID).
			Pluck("user_id", &teamIDs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch team"})
			return
		}
		if seID := c.Query("se_id"); seID != "" {
			cardQuery = cardQuery.Where("se_id = ? AND se_id IN ?", seID, teamIDs)
		} else {
			cardQuery = cardQuery.Where("se_id IN ?", teamIDs)
		}
	default:
		cardQuery = cardQuery.Where("se_id = ?", userID)
	}

	var cards []models.Scorecard
	if err := cardQuery.Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scorecards"})
		return
	}

	// se_id -> scorer type -> running sums
	type runningSums struct {
		count    int
		total    int
		sections map[string]int
	}
	sums := make(map[int]map[string]*runningSums)
	for i := range cards {
		card := &cards[i]
		byType := sums[card.SeID]
		if byType == nil {
			byType = make(map[string]*runningSums)
			sums[card.SeID] = byType
		}
		run := byType[card.ScorerType]
		if run == nil {
			run = &runningSums{sections: make(map[string]int)}
			byType[card.ScorerType] = run
		}
		run.count++
		run.total += card.TotalScore
		for _, section := range models.Rubric {
			run.sections[section.Key] += services.SectionTotal(card.Scores, section.Key)
		}
	}

	summary := make(map[int]map[string]scorerAverages, len(sums))
	for seID, byType := range sums {
		entry := make(map[string]scorerAverages, len(byType))
		for scorerType, run := range byType {
			avgs := scorerAverages{
				Submitted:       run.count,
				AverageTotal:    float64(run.total) / float64(run.count),
				SectionAverages: make(map[string]float64, len(run.sections)),
			}
			for key, total := range run.sections {
				avgs.SectionAverages[key] = float64(total) / float64(run.count)
			}
			entry[scorerType] = avgs
		}
		summary[seID] = entry
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
	})
}
