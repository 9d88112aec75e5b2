// Package limiter throttles requester writes with a fixed-window counter
// shared through redis.
package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindow increments the key and starts its window on the first hit.
var fixedWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

const keyPrefix = "supportdesk:ratelimit:"

type Limiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	log    *zap.Logger
}

// New returns a limiter allowing limit hits per window per key.
// A non-positive limit disables limiting.
func New(rdb redis.Scripter, limit int, window time.Duration, log *zap.Logger) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, log: log}
}

// Allow reports whether key may proceed. Redis failures let the request
// through: chat availability matters more than throttling.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true
	}
	res, err := fixedWindow.Run(ctx, l.rdb, []string{keyPrefix + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing", zap.String("key", key), zap.Error(err))
		return true
	}
	return res == 1
}
