package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/config"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/redis/go-redis/v9"
)

// RateLimitRepository counts checkout submissions per session in a sliding window.
type RateLimitRepository interface {
	// CheckSubmitRateLimit records an attempt and reports whether it is allowed,
	// how many attempts remain, and how many seconds to wait when it is not.
	CheckSubmitRateLimit(ctx context.Context, sessionKey string) (bool, int, int, error)
}

type redisRepository struct {
	client *redis.Client
	cfg    *config.RateConfig
	now    func() time.Time
}

func NewRedisClient(ctx context.Context, cfg *config.RedisConnect) (*redis.Client, error) {
	slog.Info("Connecting to Redis", slog.String("url", fmt.Sprintf("redis://%s:<password>@%s:%s", cfg.Username, cfg.Host, cfg.Port)))

	opt, err := redis.ParseURL(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.DB

	client := redis.NewClient(opt)

	pingCtx, cancel := utils.WithRedisTimeout(ctx)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis")

	return client, nil
}

// NewRateLimitRepo uses time.Now when now is nil.
func NewRateLimitRepo(client *redis.Client, cfg *config.RateConfig, now func() time.Time) RateLimitRepository {
	if now == nil {
		now = time.Now
	}

	return &redisRepository{client: client, cfg: cfg, now: now}
}

// Attempts live in a sorted set scored by unix milliseconds. Entries older than
// the window are trimmed before counting.
func (r *redisRepository) CheckSubmitRateLimit(ctx context.Context, sessionKey string) (bool, int, int, error) {
	logger := middleware.LoggerFromContext(ctx)

	ctx, cancel := utils.WithRedisTimeout(ctx)
	defer cancel()

	key := "checkout_submits:" + sessionKey
	now := r.now()
	nowMs := now.UnixMilli()
	window := r.cfg.WindowSize
	windowStart := nowMs - window.Milliseconds()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: strconv.FormatInt(now.UnixNano(), 10)})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Redis pipeline failed for rate limit", slog.String("key", key), slog.Any("error", err))
		return false, 0, 0, fmt.Errorf("redis pipeline error for rate limit check: %w", err)
	}

	attempts := count.Val()
	if attempts <= r.cfg.MaxAttempts {
		return true, int(r.cfg.MaxAttempts - attempts), 0, nil
	}

	oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return false, 0, int(window.Seconds()), fmt.Errorf("failed to get oldest attempt time: %w", err)
	}

	retryAfterMs := max(int64(oldest[0].Score)+window.Milliseconds()-nowMs, 0)
	retryAfter := int((time.Duration(retryAfterMs)*time.Millisecond + time.Second - 1) / time.Second)

	logger.Warn("Checkout submit rate limit exceeded", slog.String("session", sessionKey), slog.Int64("attempts", attempts))

	return false, 0, retryAfter, nil
}
