package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/spllit/spllit-backend/internal/observability"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       uint
	Username string
	Gender   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	closeOnce sync.Once
}

// Hub maintains the set of active clients and the per-match chat rooms.
// Room membership is transient: it lives only as long as the connection, and
// a reconnect must re-join rooms explicitly.
type Hub struct {
	db       *gorm.DB
	registry *Registry

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	joined  map[*Client]map[string]bool
}

// NewHub creates a new WebSocket hub
func NewHub(db *gorm.DB, registry *Registry) *Hub {
	return &Hub{
		db:       db,
		registry: registry,
		clients:  make(map[*Client]bool),
		rooms:    make(map[string]map[*Client]bool),
		joined:   make(map[*Client]map[string]bool),
	}
}

// Registry exposes the presence registry backing this hub
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.registry.Register(client.ID, client)
	observability.ConnectedClients.Set(float64(h.registry.Count()))
	log.Printf("Client %d (%s) connected", client.ID, client.Username)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	for room := range h.joined[client] {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.joined, client)
	h.mu.Unlock()

	client.closeOnce.Do(func() { close(client.Send) })
	observability.ConnectedClients.Set(float64(h.registry.Count()))
	log.Printf("Client %d (%s) disconnected", client.ID, client.Username)
}

// JoinRoom subscribes the client to a room. Authorization happens before this
// is called; the hub only tracks membership.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true

	if h.joined[client] == nil {
		h.joined[client] = make(map[string]bool)
	}
	h.joined[client][room] = true
}

// LeaveRoom removes the client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined[client], room)
}

// InRoom reports whether the client currently has the room joined
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.joined[client][room]
}

// RoomsOf returns the rooms the client currently has joined
func (h *Hub) RoomsOf(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.joined[client]))
	for room := range h.joined[client] {
		rooms = append(rooms, room)
	}
	return rooms
}

// BroadcastToRoom sends a message to every member of a room
func (h *Hub) BroadcastToRoom(room string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		h.trySend(client, message)
	}
}

// BroadcastToRoomExcept sends a message to every room member but the sender
func (h *Hub) BroadcastToRoomExcept(room string, except *Client, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client != except {
			h.trySend(client, message)
		}
	}
}

// BroadcastToUser sends a message to a specific user's live session, if any
func (h *Hub) BroadcastToUser(userID uint, message []byte) bool {
	client, ok := h.registry.Get(userID)
	if !ok {
		return false
	}
	h.trySend(client, message)
	return true
}

// BroadcastToAllExcept sends a message to all connected clients but one user
func (h *Hub) BroadcastToAllExcept(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID != userID {
			h.trySend(client, message)
		}
	}
}

func (h *Hub) trySend(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		// Client's send channel is full, skip
		log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
	}
}

// WebSocketMessage is the outbound event envelope
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent defers payload decoding until the event name is known
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, username, gender string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		Username: username,
		Gender:   gender,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	hub.addClient(client)
	client.announceStatus(true)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the event handlers
func (c *Client) readPump() {
	defer func() {
		c.handleDisconnect()
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var event inboundEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		c.route(event)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// send marshals an envelope onto the client's outbound queue
func (c *Client) send(eventType string, data interface{}) {
	message, err := json.Marshal(WebSocketMessage{Type: eventType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", eventType, err)
		return
	}
	c.Hub.trySend(c, message)
}

// sendError emits a scoped error event back to this client only
func (c *Client) sendError(context string, err error) {
	c.send("error", map[string]string{
		"context": context,
		"message": err.Error(),
	})
}

// MarshalEvent builds the wire form of an outbound event
func MarshalEvent(eventType string, data interface{}) []byte {
	message, err := json.Marshal(WebSocketMessage{Type: eventType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", eventType, err)
		return nil
	}
	return message
}
