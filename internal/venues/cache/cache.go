// Package cache keeps venue records and per-venue mutation locks in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-venues/internal/models"
)

const (
	keyPrefix        = "venue:"
	generationPrefix = "venue_gen:"
	// generationTTL only has to outlive a single read-through fill.
	generationTTL = 24 * time.Hour
)

func venueKey(id string) string {
	return keyPrefix + id
}

func generationKey(id string) string {
	return generationPrefix + id
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[2].
// A missing generation key reads as "0".
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if not current then current = "0" end
if current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// bumpGeneration drops the cached record and moves the generation forward,
// so fills that read before the bump cannot write back.
var bumpGeneration = redis.NewScript(`
redis.call("DEL", KEYS[1])
local gen = redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
return gen
`)

// Cache is a read-through store of venue records keyed by venue id.
// Related contacts, bookings, ratings and tags are not cached.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, id string) (*models.Venue, error) {
	raw, err := c.Client.Get(ctx, venueKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached venue %s: %w", id, err)
	}

	var venue models.Venue
	if err := json.Unmarshal(raw, &venue); err != nil {
		return nil, fmt.Errorf("decode cached venue %s: %w", id, err)
	}
	return &venue, nil
}

// Generation must be read before the storage read whose result is passed to SetIfCurrent.
func (c *Cache) Generation(ctx context.Context, id string) (int64, error) {
	gen, err := c.Client.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cache generation for venue %s: %w", id, err)
	}
	return gen, nil
}

// SetIfCurrent stores venue unless the venue was invalidated after generation was read.
// It reports whether the value was written.
func (c *Cache) SetIfCurrent(ctx context.Context, venue *models.Venue, generation int64) (bool, error) {
	raw, err := json.Marshal(venue)
	if err != nil {
		return false, fmt.Errorf("encode venue %s: %w", venue.VenueID, err)
	}

	written, err := setIfGeneration.Run(ctx, c.Client,
		[]string{venueKey(venue.VenueID), generationKey(venue.VenueID)},
		raw, generation, c.TTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache venue %s: %w", venue.VenueID, err)
	}
	return written == 1, nil
}

func (c *Cache) Invalidate(ctx context.Context, id string) error {
	err := bumpGeneration.Run(ctx, c.Client,
		[]string{venueKey(id), generationKey(id)},
		generationTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("invalidate venue %s: %w", id, err)
	}
	return nil
}
