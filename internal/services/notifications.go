package services

import (
	"fmt"
	"log"

	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/observability"
	"gorm.io/gorm"
)

// Notification fan-out. Delivery is best-effort and non-durable: events for
// offline users are dropped with a log line, never queued. Push delivery to
// mobile devices is deliberately stubbed out; deliverToUser's drop log is
// where a push sender would hook in.

// NotifyRideCreated announces a new ride to every connected session except
// the creator's.
func NotifyRideCreated(hub *Hub, ride *models.Ride) {
	message := MarshalEvent("new-ride-created", map[string]interface{}{
		"rideId":        ride.ID,
		"ownerId":       ride.OwnerID,
		"origin":        ride.Origin,
		"destination":   ride.Destination,
		"departureTime": ride.DepartureTime,
		"vehicleType":   ride.VehicleType,
		"seats":         ride.Seats,
		"fare":          ride.Fare,
	})
	if message == nil {
		return
	}
	hub.BroadcastToAllExcept(ride.OwnerID, message)
}

// NotifyMatchRequested tells the ride owner someone wants to join, and
// confirms creation back to the requester.
func NotifyMatchRequested(hub *Hub, match *models.Match, requesterName string) {
	ownerEvent := fmt.Sprintf("match_request_%d", match.OwnerID)
	deliverToUser(hub, match.OwnerID, ownerEvent, map[string]interface{}{
		"matchId":       match.ID,
		"rideId":        match.RideID,
		"requesterId":   match.RequesterID,
		"requesterName": requesterName,
		"status":        match.Status,
	})

	requesterEvent := fmt.Sprintf("match_created_%d", match.RequesterID)
	deliverToUser(hub, match.RequesterID, requesterEvent, map[string]interface{}{
		"matchId": match.ID,
		"rideId":  match.RideID,
		"status":  match.Status,
	})
}

// NotifyMatchAccepted tells the requester their match went through and
// reconfirms to the owner. Both payloads carry the chat room id so either
// side can join immediately.
func NotifyMatchAccepted(hub *Hub, match *models.Match) {
	payload := map[string]interface{}{
		"matchId":    match.ID,
		"rideId":     match.RideID,
		"status":     match.Status,
		"chatRoomId": match.ChatRoomID,
	}
	deliverToUser(hub, match.RequesterID, fmt.Sprintf("match_accepted_%d", match.RequesterID), payload)
	deliverToUser(hub, match.OwnerID, fmt.Sprintf("match_accepted_%d", match.OwnerID), payload)
}

// NotifyRideClosed pushes the terminal ride status into every accepted
// match's chat room so riders mid-conversation see the ride end.
func NotifyRideClosed(hub *Hub, db *gorm.DB, ride *models.Ride) {
	var matches []models.Match
	if err := db.Where("ride_id = ? AND status = ?", ride.ID, models.MatchStatusAccepted).
		Find(&matches).Error; err != nil {
		log.Printf("Failed to load matches for ride %d: %v", ride.ID, err)
		return
	}
	for _, match := range matches {
		message := MarshalEvent("ride_status", map[string]interface{}{
			"rideId":  ride.ID,
			"matchId": match.ID,
			"status":  ride.Status,
		})
		if message == nil {
			continue
		}
		hub.BroadcastToRoom(match.ChatRoomID, message)
	}
}

// NotifyMatchRejected tells the requester the owner declined
func NotifyMatchRejected(hub *Hub, match *models.Match) {
	deliverToUser(hub, match.RequesterID, fmt.Sprintf("match_rejected_%d", match.RequesterID), map[string]interface{}{
		"matchId": match.ID,
		"rideId":  match.RideID,
		"status":  match.Status,
	})
}

// NotifyNewMessage nudges the other participant about a fresh message. Room
// broadcast already delivered the full message to joined sessions; this event
// reaches a participant whose session is connected but not in the room.
func NotifyNewMessage(hub *Hub, message *models.Message, senderName string, recipientID uint) {
	deliverToUser(hub, recipientID, fmt.Sprintf("message_notification_%d", recipientID), map[string]interface{}{
		"messageId":  message.ID,
		"matchId":    message.MatchID,
		"senderId":   message.SenderID,
		"senderName": senderName,
		"preview":    preview(message.Content),
	})
}

func deliverToUser(hub *Hub, userID uint, eventType string, data interface{}) {
	message := MarshalEvent(eventType, data)
	if message == nil {
		return
	}
	if delivered := hub.BroadcastToUser(userID, message); !delivered {
		observability.DroppedEventsTotal.Inc()
		log.Printf("Dropped %s for offline user %d", eventType, userID)
	}
}

// preview truncates on a rune boundary so multi-byte content stays valid
func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
