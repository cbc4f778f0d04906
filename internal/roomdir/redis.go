package roomdir

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "room:"

// Redis reserves ids cluster-wide with SET NX, so instances sharing one
// Redis never hand out the same room code. The value is the owning
// instance; release and refresh go through the roomdir Lua library and only
// act on keys this owner still holds. The TTL bounds how long a crashed
// instance keeps an id locked, and live rooms are refreshed through Touch.
type Redis struct {
	rdc   *redis.Client
	owner string
	ttl   time.Duration
}

// NewRedis stores owner (the instance id) as the value of each reservation.
// The roomdir functions must already be loaded (redis_functions.LoadAll).
func NewRedis(rdc *redis.Client, owner string, ttl time.Duration) *Redis {
	return &Redis{rdc: rdc, owner: owner, ttl: ttl}
}

func (d *Redis) Reserve(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdc.SetNX(ctx, redisKeyPrefix+id, d.owner, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve room %s: %w", id, err)
	}
	return ok, nil
}

func (d *Redis) Release(ctx context.Context, id string) error {
	n, err := d.rdc.FCall(ctx, "room_release", []string{redisKeyPrefix + id}, d.owner).Int64()
	if err != nil {
		return fmt.Errorf("release room %s: %w", id, err)
	}
	if n == 0 {
		zap.L().Debug("roomdir.release_skipped", zap.String("room", id), zap.String("owner", d.owner))
	}
	return nil
}

func (d *Redis) Touch(ctx context.Context, id string) (bool, error) {
	n, err := d.rdc.FCall(ctx, "room_touch", []string{redisKeyPrefix + id}, d.owner, d.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("touch room %s: %w", id, err)
	}
	if n == 2 {
		zap.L().Warn("roomdir.reclaimed", zap.String("room", id))
	}
	return n != 0, nil
}
