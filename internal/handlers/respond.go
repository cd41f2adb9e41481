package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/spllit/spllit-backend/internal/services"
)

// respondError maps a service error onto an HTTP response. Store failures get
// a generic message; typed errors carry their own.
func respondError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status == 500 {
		c.JSON(500, gin.H{"error": "Something went wrong, please retry"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
