package services

import (
	"context"
	"log"
	"sync"

	"github.com/spllit/spllit-backend/internal/models"
	"gorm.io/gorm"
)

// Registry tracks which users currently hold a live connection. It is
// process-wide, rebuilt empty on restart, and only ever answers about the
// current instant; historical presence lives in the Redis last-seen cache.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint]*Client
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint]*Client)}
}

// Register binds a user to a live connection handle. A reconnect replaces the
// previous handle; the stale connection's teardown is ignored by Unregister.
func (r *Registry) Register(userID uint, client *Client) {
	r.mu.Lock()
	r.sessions[userID] = client
	r.mu.Unlock()

	if err := SetUserPresence(context.Background(), userID, true); err != nil {
		log.Printf("Failed to cache presence for user %d: %v", userID, err)
	}
}

// Unregister removes the binding, but only if client is still the current
// handle for the user (a fast reconnect may have already replaced it).
func (r *Registry) Unregister(userID uint, client *Client) bool {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if !ok || current != client {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	if err := SetUserPresence(context.Background(), userID, false); err != nil {
		log.Printf("Failed to cache presence for user %d: %v", userID, err)
	}
	return true
}

// Get returns the live connection handle for a user, if any
func (r *Registry) Get(userID uint) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.sessions[userID]
	return client, ok
}

// IsOnline reports whether the user has a live connection right now
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// ListOnline returns the ids of all currently connected users
func (r *Registry) ListOnline() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DeactivateLocationPings switches off all of a user's active location rows.
// Called when the user stops sharing and as the cascade on disconnect.
func DeactivateLocationPings(db *gorm.DB, userID uint) error {
	return db.Model(&models.LocationPing{}).
		Where("user_id = ? AND active = ?", userID, true).
		Update("active", false).Error
}
