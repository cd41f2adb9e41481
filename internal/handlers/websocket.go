package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/services"
	"gorm.io/gorm"
)

// WebSocketHandler handles WebSocket connections
func WebSocketHandler(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		gender := c.GetString("gender")

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		// Convert Gin's ResponseWriter to http.ResponseWriter
		services.HandleWebSocket(hub, c.Writer, c.Request, userID, user.Username, gender)
	}
}
