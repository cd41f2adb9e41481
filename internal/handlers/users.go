package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/services"
	"gorm.io/gorm"
)

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"username":    user.Username,
			"phoneNumber": user.PhoneNumber,
			"gender":      user.Gender,
		})
	}
}

// GetUserPresence reports whether a user is connected right now. The live
// registry is authoritative; the Redis cache fills in a last-seen timestamp
// for offline users when available.
func GetUserPresence(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid user ID"})
			return
		}

		var user models.User
		if err := db.First(&user, targetID).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		response := gin.H{
			"userId": user.ID,
			"online": hub.Registry().IsOnline(uint(targetID)),
		}
		_, lastSeen, err := services.GetUserPresence(c.Request.Context(), uint(targetID))
		if err == nil && !lastSeen.IsZero() {
			response["lastSeen"] = lastSeen
		} else if err != nil && !errors.Is(err, redis.Nil) {
			c.JSON(500, gin.H{"error": "Failed to fetch presence"})
			return
		}

		c.JSON(200, response)
	}
}

// UpdateProfile updates the user's profile information
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Username    *string `json:"username"`
			PhoneNumber *string `json:"phoneNumber"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		// Update fields individually to handle empty strings properly
		if input.Username != nil {
			user.Username = *input.Username
		}
		if input.PhoneNumber != nil {
			user.PhoneNumber = *input.PhoneNumber
		}

		// Use Save() instead of Updates() to persist all fields including empty strings
		if err := db.Save(&user).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update profile"})
			return
		}

		c.JSON(200, gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"username":    user.Username,
			"phoneNumber": user.PhoneNumber,
			"gender":      user.Gender,
		})
	}
}
