package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SelectionStore persists the customer's last chosen redemption coin count
// across sessions. Only the raw request is stored, never the computed plan:
// the stored value may be stale by the time it is read back and must always
// be re-clamped through PlanRedemption.
type SelectionStore struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (s SelectionStore) key(customerID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "loyalty"
	}
	return prefix + ":selection:" + customerID
}

func (s SelectionStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

// Save stores the requested coin count for the customer. Negative requests
// are stored as zero.
func (s SelectionStore) Save(ctx context.Context, customerID string, coins int64) error {
	if s.R == nil {
		return errors.New("loyalty: redis client not configured")
	}
	if strings.TrimSpace(customerID) == "" {
		return errors.New("loyalty: customer id is required")
	}
	if coins < 0 {
		coins = 0
	}
	return s.R.Set(ctx, s.key(customerID), strconv.FormatInt(coins, 10), s.ttl()).Err()
}

// Load returns the stored coin count and whether a selection exists.
func (s SelectionStore) Load(ctx context.Context, customerID string) (int64, bool, error) {
	if s.R == nil {
		return 0, false, errors.New("loyalty: redis client not configured")
	}
	raw, err := s.R.Get(ctx, s.key(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	coins, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("loyalty: corrupt selection %q: %w", raw, err)
	}
	return coins, true, nil
}

// Clear removes the stored selection.
func (s SelectionStore) Clear(ctx context.Context, customerID string) error {
	if s.R == nil {
		return errors.New("loyalty: redis client not configured")
	}
	return s.R.Del(ctx, s.key(customerID)).Err()
}
