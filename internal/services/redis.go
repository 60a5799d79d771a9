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

// CacheSeatCount stores a ride's seat count for display surfaces. The cached
// value is advisory: booking decisions always go back to the database.
func CacheSeatCount(ctx context.Context, rideID uint, seats int) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("ride:seats:%d", rideID)
	return RedisClient.Set(ctx, key, seats, 5*time.Minute).Err()
}

// GetCachedSeatCount retrieves a cached seat count for a ride.
func GetCachedSeatCount(ctx context.Context, rideID uint) (int, error) {
	if RedisClient == nil {
		return 0, redis.Nil
	}
	key := fmt.Sprintf("ride:seats:%d", rideID)
	return RedisClient.Get(ctx, key).Int()
}

// PublishBookingUpdate publishes a booking status change to Redis pub/sub
func PublishBookingUpdate(ctx context.Context, rideID, bookingID uint, status string) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"rideId":    rideID,
		"bookingId": bookingID,
		"status":    status,
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", data).Err()
}

// PublishRideUpdate publishes a ride status change to Redis pub/sub
func PublishRideUpdate(ctx context.Context, rideID uint, status string, data map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"rideId":    rideID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "ride:updates", jsonData).Err()
}
