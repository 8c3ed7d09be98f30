package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifeline-plus/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

const positionKeyPrefix = "location:last:"

type cachedPosition struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	CapturedAt time.Time `json:"captured_at"`
}

// PositionCache keeps each caller's last device position in Redis.
// Entries expire after maxAge, which is the cached-position tolerance.
type PositionCache struct {
	redisClient *redis.Client
	maxAge      time.Duration
}

func NewPositionCache(redisClient *redis.Client, maxAge time.Duration) *PositionCache {
	return &PositionCache{redisClient: redisClient, maxAge: maxAge}
}

func (c *PositionCache) Remember(ctx context.Context, phone string, pos Position) error {
	payload, err := json.Marshal(cachedPosition{
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		CapturedAt: pos.CapturedAt.UTC(),
	})
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, positionKeyPrefix+phone, payload, c.maxAge).Err()
}

// Locate implements Locator using the cached position for req.Phone.
func (c *PositionCache) Locate(ctx context.Context, req Request) (Position, error) {
	if req.Phone == "" {
		return Position{}, fmt.Errorf("%w: no phone to look up", ErrLocationUnavailable)
	}

	raw, err := c.redisClient.Get(ctx, positionKeyPrefix+req.Phone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Position{}, fmt.Errorf("%w: no cached position", ErrLocationUnavailable)
		}
		return Position{}, err
	}

	var cached cachedPosition
	if err := json.Unmarshal(raw, &cached); err != nil {
		return Position{}, err
	}

	return Position{
		Latitude:   cached.Latitude,
		Longitude:  cached.Longitude,
		Source:     entity.LocationSourceCached,
		CapturedAt: cached.CapturedAt,
	}, nil
}
