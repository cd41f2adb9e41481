package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/observability"
)

// Inbound socket event payloads. Each event name maps to exactly one of these
// shapes; anything that doesn't decode is rejected before touching the stores.

type JoinMatchesPayload struct {
	MatchIDs []uint `json:"matchIds"`
}

type SendMessagePayload struct {
	MatchID  uint            `json:"matchId"`
	Content  string          `json:"content"`
	Type     string          `json:"type,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type TypingPayload struct {
	MatchID  uint `json:"matchId"`
	IsTyping bool `json:"isTyping"`
}

type ShareLocationPayload struct {
	MatchID  uint     `json:"matchId"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Heading  *float64 `json:"heading,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
}

type MarkReadPayload struct {
	MessageID uint `json:"messageId"`
}

// route dispatches a decoded inbound event to its handler
func (c *Client) route(event inboundEvent) {
	switch event.Type {
	case "join_matches":
		var payload JoinMatchesPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError(event.Type, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		c.handleJoinMatches(payload)
	case "send_message":
		var payload SendMessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError(event.Type, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		c.handleSendMessage(payload)
	case "typing":
		var payload TypingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError(event.Type, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		c.handleTyping(payload)
	case "share_location":
		var payload ShareLocationPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError(event.Type, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		c.handleShareLocation(payload)
	case "stop_location":
		c.handleStopLocation()
	case "mark_read":
		var payload MarkReadPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.sendError(event.Type, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		c.handleMarkRead(payload)
	default:
		log.Printf("Client %d sent unknown event %q", c.ID, event.Type)
	}
}

// handleJoinMatches subscribes the session to the rooms of the given matches.
// Best-effort bulk join: ids the user is not a participant of are skipped
// silently instead of failing the batch.
func (c *Client) handleJoinMatches(payload JoinMatchesPayload) {
	for _, matchID := range payload.MatchIDs {
		match, err := GetMatchForParticipant(c.Hub.db, matchID, c.ID)
		if err != nil {
			continue
		}
		c.Hub.JoinRoom(c, ChatRoomID(match.ID))
	}
}

// handleSendMessage persists a chat message and broadcasts it to the room,
// sender included. The broadcast happens only after a successful store write,
// which makes the write ordering the delivery ordering.
func (c *Client) handleSendMessage(payload SendMessagePayload) {
	if payload.Content == "" {
		c.sendError("send_message", fmt.Errorf("%w: content is required", ErrValidation))
		return
	}
	match, err := GetMatchForParticipant(c.Hub.db, payload.MatchID, c.ID)
	if err != nil {
		c.sendError("send_message", err)
		return
	}

	messageType := payload.Type
	if messageType != models.MessageTypeSystem {
		messageType = models.MessageTypeText
	}

	message := models.Message{
		MatchID:  match.ID,
		SenderID: c.ID,
		Content:  payload.Content,
		Type:     messageType,
		Metadata: string(payload.Metadata),
	}
	if err := c.Hub.db.Create(&message).Error; err != nil {
		c.sendError("send_message", err)
		return
	}
	observability.MessagesTotal.Inc()

	room := ChatRoomID(match.ID)
	c.Hub.BroadcastToRoom(room, MarshalEvent("new_message", map[string]interface{}{
		"id":         message.ID,
		"matchId":    message.MatchID,
		"senderId":   message.SenderID,
		"senderName": c.Username,
		"content":    message.Content,
		"type":       message.Type,
		"metadata":   json.RawMessage(orNullJSON(message.Metadata)),
		"createdAt":  message.CreatedAt,
	}))

	NotifyNewMessage(c.Hub, &message, c.Username, match.OtherParty(c.ID))
}

// handleTyping relays a typing indicator to the room, excluding the sender
func (c *Client) handleTyping(payload TypingPayload) {
	match, err := GetMatchForParticipant(c.Hub.db, payload.MatchID, c.ID)
	if err != nil {
		c.sendError("typing", err)
		return
	}

	room := ChatRoomID(match.ID)
	c.Hub.BroadcastToRoomExcept(room, c, MarshalEvent("user_typing", map[string]interface{}{
		"matchId":  match.ID,
		"userId":   c.ID,
		"username": c.Username,
		"isTyping": payload.IsTyping,
	}))
}

// handleShareLocation persists an active location ping and broadcasts it
func (c *Client) handleShareLocation(payload ShareLocationPayload) {
	if payload.Lat < -90 || payload.Lat > 90 || payload.Lng < -180 || payload.Lng > 180 {
		c.sendError("share_location", fmt.Errorf("%w: invalid coordinates", ErrValidation))
		return
	}
	match, err := GetMatchForParticipant(c.Hub.db, payload.MatchID, c.ID)
	if err != nil {
		c.sendError("share_location", err)
		return
	}

	ping := models.LocationPing{
		UserID:    c.ID,
		Latitude:  payload.Lat,
		Longitude: payload.Lng,
		Accuracy:  payload.Accuracy,
		Heading:   payload.Heading,
		Speed:     payload.Speed,
		Active:    true,
	}
	if err := c.Hub.db.Create(&ping).Error; err != nil {
		c.sendError("share_location", err)
		return
	}

	ctx := context.Background()
	if err := CacheUserLocation(ctx, c.ID, payload.Lat, payload.Lng); err != nil {
		log.Printf("Failed to cache location for user %d: %v", c.ID, err)
	}
	if err := PublishLocationUpdate(ctx, c.ID, match.ID, payload.Lat, payload.Lng); err != nil {
		log.Printf("Failed to publish location for user %d: %v", c.ID, err)
	}

	room := ChatRoomID(match.ID)
	c.Hub.BroadcastToRoom(room, MarshalEvent("location_update", map[string]interface{}{
		"matchId":  match.ID,
		"userId":   c.ID,
		"username": c.Username,
		"lat":      payload.Lat,
		"lng":      payload.Lng,
		"accuracy": payload.Accuracy,
		"heading":  payload.Heading,
		"speed":    payload.Speed,
		"active":   true,
	}))
}

// handleStopLocation deactivates all of the user's active pings. Not scoped
// to a single match: stop sharing is global for the user.
func (c *Client) handleStopLocation() {
	if err := DeactivateLocationPings(c.Hub.db, c.ID); err != nil {
		c.sendError("stop_location", err)
		return
	}
	for _, room := range c.Hub.RoomsOf(c) {
		c.Hub.BroadcastToRoomExcept(room, c, MarshalEvent("location_update", map[string]interface{}{
			"userId": c.ID,
			"active": false,
		}))
	}
}

// handleMarkRead flips the read flag and broadcasts a receipt to the room
func (c *Client) handleMarkRead(payload MarkReadPayload) {
	var message models.Message
	if err := c.Hub.db.First(&message, payload.MessageID).Error; err != nil {
		c.sendError("mark_read", notFound("message"))
		return
	}
	match, err := GetMatchForParticipant(c.Hub.db, message.MatchID, c.ID)
	if err != nil {
		c.sendError("mark_read", err)
		return
	}

	if err := c.Hub.db.Model(&message).Update("read", true).Error; err != nil {
		c.sendError("mark_read", err)
		return
	}

	room := ChatRoomID(match.ID)
	c.Hub.BroadcastToRoom(room, MarshalEvent("message_read", map[string]interface{}{
		"messageId": message.ID,
		"matchId":   match.ID,
		"readBy":    c.ID,
		"readAt":    time.Now(),
	}))
}

// handleDisconnect tears down the session: offline status to the rooms of the
// user's active matches, presence unregister, and the location-ping cascade.
// Already-persisted side effects are never rolled back.
func (c *Client) handleDisconnect() {
	c.announceStatus(false)

	if removed := c.Hub.registry.Unregister(c.ID, c); removed {
		if err := DeactivateLocationPings(c.Hub.db, c.ID); err != nil {
			log.Printf("Failed to deactivate location pings for user %d: %v", c.ID, err)
		}
	}

	c.Hub.removeClient(c)
}

// announceStatus broadcasts an online/offline transition to the rooms of all
// the user's active (non-rejected) matches. Best-effort: delivery may race
// with concurrent accepts/rejects, which is fine because the match engine's
// own status checks are the authoritative guard.
func (c *Client) announceStatus(online bool) {
	matchIDs, err := ActiveMatchIDs(c.Hub.db, c.ID)
	if err != nil {
		log.Printf("Failed to list active matches for user %d: %v", c.ID, err)
		return
	}

	status := "offline"
	if online {
		status = "online"
	}
	for _, matchID := range matchIDs {
		c.Hub.BroadcastToRoomExcept(ChatRoomID(matchID), c, MarshalEvent("user_status", map[string]interface{}{
			"matchId":  matchID,
			"userId":   c.ID,
			"username": c.Username,
			"status":   status,
		}))
	}
}

// orNullJSON keeps empty metadata as JSON null instead of an empty string
func orNullJSON(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
