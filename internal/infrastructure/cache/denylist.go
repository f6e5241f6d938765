package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zzkuner/fileonline/internal/capability"
)

const revokedKeyPrefix = "revoked:"

// RedisDenylist stores revoked capability tokens. Each entry expires together
// with the token it blocks, so the set never outgrows the live tokens.
type RedisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisDenylist creates a denylist backed by client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, now: time.Now}
}

// Revoke records (path, expires). Tokens already past expiry are skipped.
func (d *RedisDenylist) Revoke(ctx context.Context, path string, expires int64) error {
	// One extra second covers the inclusive expiry comparison.
	ttl := time.Unix(expires, 0).Sub(d.now()) + time.Second
	if ttl <= 0 {
		return nil
	}
	if err := d.client.SetNX(ctx, d.key(path, expires), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// IsRevoked reports whether (path, expires) was revoked.
func (d *RedisDenylist) IsRevoked(ctx context.Context, path string, expires int64) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(path, expires)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDenylist) key(path string, expires int64) string {
	return revokedKeyPrefix + path + ":" + strconv.FormatInt(expires, 10)
}

// Compile-time verification that RedisDenylist implements capability.Denylist.
var _ capability.Denylist = (*RedisDenylist)(nil)
