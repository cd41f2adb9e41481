package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/services"
	"gorm.io/gorm"
)

// RequestJoin creates a pending match against a ride and notifies the owner
func RequestJoin(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		match, err := services.RequestJoin(db, uint(rideID), userId)
		if err != nil {
			respondError(c, err)
			return
		}

		var requester models.User
		requesterName := ""
		if err := db.First(&requester, userId).Error; err == nil {
			requesterName = requester.Username
		}
		services.NotifyMatchRequested(hub, match, requesterName)

		c.JSON(201, match)
	}
}

// AcceptMatch lets the ride owner accept a pending join request
func AcceptMatch(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid match ID"})
			return
		}

		match, err := services.AcceptMatch(db, uint(matchID), userId)
		if err != nil {
			respondError(c, err)
			return
		}

		services.NotifyMatchAccepted(hub, match)

		c.JSON(200, gin.H{
			"message":    "Match accepted successfully",
			"matchId":    match.ID,
			"status":     match.Status,
			"chatRoomId": match.ChatRoomID,
		})
	}
}

// RejectMatch lets the ride owner decline a pending join request. The ride
// stays open for other requesters.
func RejectMatch(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid match ID"})
			return
		}

		match, err := services.RejectMatch(db, uint(matchID), userId)
		if err != nil {
			respondError(c, err)
			return
		}

		services.NotifyMatchRejected(hub, match)

		c.JSON(200, gin.H{
			"message": "Match rejected",
			"matchId": match.ID,
			"status":  match.Status,
		})
	}
}

// GetMyMatches lists matches the user participates in, either side
func GetMyMatches(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var matches []models.Match
		if err := db.Preload("Ride").Preload("Requester").
			Where("owner_id = ? OR requester_id = ?", userId, userId).
			Order("created_at DESC").
			Find(&matches).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch matches"})
			return
		}

		c.JSON(200, matches)
	}
}

// GetMatchMessages returns the chat history of a match so a reconnecting
// client can backfill before re-joining the room.
func GetMatchMessages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid match ID"})
			return
		}

		if _, err := services.GetMatchForParticipant(db, uint(matchID), userId); err != nil {
			respondError(c, err)
			return
		}

		var messages []models.Message
		if err := db.Preload("Sender").
			Where("match_id = ?", matchID).
			Order("created_at ASC").
			Find(&messages).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch messages"})
			return
		}

		c.JSON(200, messages)
	}
}
