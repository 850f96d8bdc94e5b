package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
)

// GetTeam lists the SEs assigned to the calling manager.
func GetTeam(c *gin.Context) {
	userID, _ := c.Get("userID")

	var team []models.User
	if err := config.DB.
		Where("manager_id = ? AND delete_at IS NULL", userID).
		Order("user_lname, user_fname").
		Find(&team).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch team"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team":  team,
		"total": len(team),
	})
}

// AssignManager sets or changes the manager of an SE. Admin only.
func AssignManager(c *gin.Context) {
	type AssignManagerRequest struct {
		ManagerID int `json:"manager_id" binding:"required"`
	}

	var req AssignManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var se models.User
	if err := config.DB.Where("user_id = ? AND delete_at IS NULL", seID).First(&se).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var manager models.User
	if err := config.DB.
		Where("user_id = ? AND role_id = ? AND delete_at IS NULL", req.ManagerID, models.RoleManager).
		First(&manager).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Manager not found"})
		return
	}

	now := time.Now()
	se.ManagerID = &manager.UserID
	se.UpdateAt = &now

	if err := config.DB.Save(&se).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign manager"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    se,
		"message": "Manager assigned",
	})
}
