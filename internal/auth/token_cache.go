package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-venues/internal/logger"
)

const (
	verifiedTokenPrefix = "auth_token:"
	// TokenExpiryBuffer keeps a cached verdict from outliving the token itself.
	TokenExpiryBuffer = 30 * time.Second
)

// CachingVerifier remembers successful verifications in Redis, keyed by token hash.
// Failed verifications are never cached.
type CachingVerifier struct {
	Next   TokenVerifier
	Client *redis.Client
	MaxTTL time.Duration
	Logger *logger.Logger
}

func NewCachingVerifier(next TokenVerifier, client *redis.Client, maxTTL time.Duration, log *logger.Logger) *CachingVerifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachingVerifier{Next: next, Client: client, MaxTTL: maxTTL, Logger: log}
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return verifiedTokenPrefix + hex.EncodeToString(sum[:])
}

func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	key := tokenKey(rawToken)

	if identity, ok := c.lookup(ctx, key); ok {
		return identity, nil
	}

	identity, err := c.Next.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, err
	}

	ttl := c.MaxTTL
	if !identity.ExpiresAt.IsZero() {
		ttl = min(ttl, time.Until(identity.ExpiresAt)-TokenExpiryBuffer)
	}
	if ttl > 0 {
		if err := c.store(ctx, key, identity, ttl); err != nil {
			c.Logger.Warn("AUTH", fmt.Sprintf("Failed to cache verified token: %v", err))
		}
	}
	return identity, nil
}

func (c *CachingVerifier) lookup(ctx context.Context, key string) (Identity, bool) {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, false
	}
	if err != nil {
		c.Logger.Warn("AUTH", fmt.Sprintf("Token cache read failed: %v", err))
		return Identity{}, false
	}

	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return Identity{}, false
	}
	if !identity.ExpiresAt.IsZero() && time.Now().Add(TokenExpiryBuffer).After(identity.ExpiresAt) {
		return Identity{}, false
	}
	return identity, true
}

func (c *CachingVerifier) store(ctx context.Context, key string, identity Identity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.Client.Set(ctx, key, raw, ttl).Err()
}
