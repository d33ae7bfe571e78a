package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a caller exhausts its window budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// joinWindowScript increments the window counter and arms its expiry in
// the same call. The PTTL check repairs counters left without a TTL by
// an earlier interrupted increment, so a key can never outlive its
// window and lock the client out permanently.
const joinWindowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

// RateLimiter throttles join attempts per client using a fixed Redis
// counter window. Joining is the only anonymous write endpoint, so it is
// the only one worth guarding against scripted submissions.
type RateLimiter struct {
	redis   *redis.Client
	maxHits int64
	window  time.Duration
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:   redisClient,
		maxHits: 10,
		window:  time.Minute,
	}
}

// AllowJoin counts one join attempt for the client and fails once the
// window budget is spent. Redis errors fail open: a limiter outage must
// not lock customers out of the queue.
func (r *RateLimiter) AllowJoin(ctx context.Context, clientIP string) error {
	key := fmt.Sprintf("ratelimit:join:%s", clientIP)

	count, err := r.redis.Eval(ctx, joinWindowScript, []string{key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return nil
	}
	if count > r.maxHits {
		return ErrRateLimited
	}
	return nil
}
