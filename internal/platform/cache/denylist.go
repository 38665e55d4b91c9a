package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "dfashion:revoked:"

// Denylist remembers revoked token ids until the token would have expired
// on its own. Keys expire through Redis TTLs so the set never grows past the
// population of live tokens.
type Denylist struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewDenylist wraps client.
func NewDenylist(client redis.UniversalClient) *Denylist {
	return &Denylist{client: client, now: time.Now}
}

// Revoke marks id as revoked until until. Ids already past until are ignored.
func (d *Denylist) Revoke(ctx context.Context, id string, until time.Time) error {
	if id == "" {
		return errors.New("platform/cache: token id required")
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistPrefix+id, 1, ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether id was revoked and has not yet aged out.
func (d *Denylist) IsRevoked(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, denylistPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("platform/cache: lookup: %w", err)
	}
	return n > 0, nil
}
