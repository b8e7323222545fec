// Package ratelimit implements the ambient, Redis-backed ingress limiter.
// It is deliberately separate from the outbound dispatcher's in-process
// rolling-window limiter (pkg/httpclient): this package shapes aggregate
// inbound traffic across every replica sharing the same Redis instance,
// while the per-process limiter bounds a single process's share of the
// downstream call budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TieredConfig defines tiered rate limiting configuration
type TieredConfig struct {
	GlobalLimit    int64
	GlobalWindow   time.Duration
	IPLimit        int64
	IPWindow       time.Duration
	EndpointLimits map[string]EndpointLimit
}

// EndpointLimit defines rate limit for a specific endpoint
type EndpointLimit struct {
	Limit  int64
	Window time.Duration
}

// TieredLimiter implements multi-tier rate limiting backed by Redis sorted
// sets, shared across every process instance that points at the same Redis.
type TieredLimiter struct {
	redis  *redis.Client
	config TieredConfig
	logger *zap.Logger
}

// NewTieredLimiter creates a new tiered rate limiter
func NewTieredLimiter(redisClient *redis.Client, config TieredConfig, logger *zap.Logger) *TieredLimiter {
	return &TieredLimiter{
		redis:  redisClient,
		config: config,
		logger: logger,
	}
}

// CheckResult contains the result of a rate limit check
type CheckResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
	LimitedBy  string
}

// Check performs a tiered rate limit check: global, then per-IP, then
// per-endpoint. The first tier that rejects short-circuits the rest.
func (l *TieredLimiter) Check(ctx context.Context, ip, endpoint string) (*CheckResult, error) {
	if l.config.GlobalLimit > 0 {
		allowed, remaining, err := l.checkLimit(ctx, "global", "global", l.config.GlobalLimit, l.config.GlobalWindow)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return &CheckResult{Allowed: false, Remaining: remaining, ResetAt: time.Now().Add(l.config.GlobalWindow), RetryAfter: l.config.GlobalWindow, LimitedBy: "global"}, nil
		}
	}

	if l.config.IPLimit > 0 && ip != "" {
		allowed, remaining, err := l.checkLimit(ctx, "ip", ip, l.config.IPLimit, l.config.IPWindow)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return &CheckResult{Allowed: false, Remaining: remaining, ResetAt: time.Now().Add(l.config.IPWindow), RetryAfter: l.config.IPWindow, LimitedBy: "ip"}, nil
		}
	}

	if endpointLimit, ok := l.config.EndpointLimits[endpoint]; ok {
		key := fmt.Sprintf("%s:%s", endpoint, ip)
		allowed, remaining, err := l.checkLimit(ctx, "endpoint", key, endpointLimit.Limit, endpointLimit.Window)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return &CheckResult{Allowed: false, Remaining: remaining, ResetAt: time.Now().Add(endpointLimit.Window), RetryAfter: endpointLimit.Window, LimitedBy: "endpoint"}, nil
		}
	}

	return &CheckResult{Allowed: true, Remaining: -1}, nil
}

func (l *TieredLimiter) checkLimit(ctx context.Context, tier, key string, limit int64, window time.Duration) (bool, int64, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", tier, key)
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCount(ctx, redisKey, fmt.Sprintf("%d", windowStart.UnixNano()), "+inf")
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, window*2)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := countCmd.Val()
	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}

	return count < limit, remaining, nil
}
