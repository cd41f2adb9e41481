package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spllit/spllit-backend/internal/services"
)

const maxAttachmentBytes = 5 << 20 // 5 MB

// UploadChatAttachment stores an image and returns its URL. The client embeds
// the URL in a message's metadata when sending.
func UploadChatAttachment() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(400, gin.H{"error": "File is required"})
			return
		}

		if file.Size > maxAttachmentBytes {
			c.JSON(400, gin.H{"error": "File too large (max 5MB)"})
			return
		}

		contentType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			c.JSON(400, gin.H{"error": "Only image attachments are supported"})
			return
		}

		url, err := services.UploadAttachment(file)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to store attachment"})
			return
		}

		c.JSON(201, gin.H{"url": url})
	}
}
