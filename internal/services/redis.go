package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// Redis is a cache here, not a source of truth. Every helper below is a no-op
// when the client was never initialized (tests, local runs without Redis).

// SetUserPresence records the user's last-seen instant and online flag
func SetUserPresence(ctx context.Context, userID uint, online bool) error {
	if RedisClient == nil {
		return nil
	}
	presenceData := map[string]interface{}{
		"online":   online,
		"lastSeen": time.Now().Unix(),
	}

	data, err := json.Marshal(presenceData)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("user:presence:%d", userID)
	return RedisClient.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetUserPresence retrieves the cached presence record for a user
func GetUserPresence(ctx context.Context, userID uint) (online bool, lastSeen time.Time, err error) {
	if RedisClient == nil {
		return false, time.Time{}, redis.Nil
	}
	key := fmt.Sprintf("user:presence:%d", userID)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return false, time.Time{}, err
	}

	var presenceData map[string]interface{}
	if err := json.Unmarshal([]byte(data), &presenceData); err != nil {
		return false, time.Time{}, err
	}

	online, _ = presenceData["online"].(bool)
	if ts, ok := presenceData["lastSeen"].(float64); ok {
		lastSeen = time.Unix(int64(ts), 0)
	}
	return online, lastSeen, nil
}

// CacheUserLocation stores the user's latest shared position
func CacheUserLocation(ctx context.Context, userID uint, lat, lng float64) error {
	if RedisClient == nil {
		return nil
	}
	locationData := map[string]interface{}{
		"lat":     lat,
		"lng":     lng,
		"updated": time.Now().Unix(),
	}

	data, err := json.Marshal(locationData)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("user:location:%d", userID)
	return RedisClient.Set(ctx, key, data, time.Hour).Err()
}

// PublishLocationUpdate publishes a location ping to Redis pub/sub so other
// instances (or ops tooling) can observe live positions
func PublishLocationUpdate(ctx context.Context, userID, matchID uint, lat, lng float64) error {
	if RedisClient == nil {
		return nil
	}
	locationData := map[string]interface{}{
		"userId":  userID,
		"matchId": matchID,
		"location": map[string]float64{
			"lat": lat,
			"lng": lng,
		},
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(locationData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "location:updates", data).Err()
}
