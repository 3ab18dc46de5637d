// Package ratelimit throttles failed logins with fixed-window counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// ErrRateLimited is returned when an identifier or client IP has used up its failed-login budget.
var ErrRateLimited = errors.New("too many failed login attempts")

const keyPrefix = "vidtube:auth:login:"

// Config holds limiter tuning parameters.
type Config struct {
	// MaxAttempts is the number of failed logins tolerated per window; the next attempt is refused.
	MaxAttempts int
	// Cooldown is the window length, started by the first failure.
	Cooldown time.Duration
}

// LoginLimiter counts failed logins per identifier and per client IP.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a LoginLimiter backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) *LoginLimiter {
	return &LoginLimiter{redis: client, config: cfg}
}

// CheckLogin returns ErrRateLimited when either the identifier or the IP has
// reached MaxAttempts failures in the current window.
func (l *LoginLimiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "get").Wrap(err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login for identifier and ip.
func (l *LoginLimiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "incr").Wrap(err)
		}
		// Fixed window: the TTL is set by the first failure only.
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
				return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
			}
		}
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left alone so one good account cannot launder failures for others.
func (l *LoginLimiter) ResetLogin(ctx context.Context, identifier string) error {
	if identifier == "" {
		return nil
	}
	if err := l.redis.Del(ctx, userKey(identifier)).Err(); err != nil {
		return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "del").Wrap(err)
	}
	return nil
}

// Attempts returns the failure count recorded for identifier.
func (l *LoginLimiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, userKey(identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "get").Wrap(err)
	}
	return count, nil
}

func (l *LoginLimiter) keys(identifier, ip string) []string {
	keys := make([]string, 0, 2)
	if identifier != "" {
		keys = append(keys, userKey(identifier))
	}
	if ip != "" {
		keys = append(keys, keyPrefix+"ip:"+ip)
	}
	return keys
}

func userKey(identifier string) string {
	return keyPrefix + "id:" + strings.ToLower(strings.TrimSpace(identifier))
}
