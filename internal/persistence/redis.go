package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// ErrCodeNotFound signals an absent or expired one-time code.
var ErrCodeNotFound = errors.New("one-time code not found")

// Redis wraps the go-redis client. Besides connectivity it hosts the
// one-time-code store used by OTP login: codes live under a per-user
// key and expire with their TTL, so verification after expiry simply
// sees no key.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

func otpKey(userID int64) string {
	return fmt.Sprintf("otp:%d", userID)
}

// StoreOneTimeCode saves the code for the user, replacing any earlier
// one, and starts the expiry clock.
func (r *Redis) StoreOneTimeCode(ctx context.Context, userID int64, code string, ttl time.Duration) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Set(ctx, otpKey(userID), code, ttl).Err()
}

// ConsumeOneTimeCode checks the submitted code and deletes it on
// success so a code never verifies twice. Expired and unknown codes
// both come back as ErrCodeNotFound.
func (r *Redis) ConsumeOneTimeCode(ctx context.Context, userID int64, code string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	stored, err := r.Client.Get(ctx, otpKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if stored != code {
		return ErrCodeNotFound
	}
	return r.Client.Del(ctx, otpKey(userID)).Err()
}
