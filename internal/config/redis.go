package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// NewRedisClient connects to the catalog cache. It returns nil when the cache
// is disabled or unreachable; callers then read straight from the database.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil
	}
	return client
}

// Payment converts the loaded settings into gateway settings
func (s StripeConfig) Payment(timeout time.Duration) payment.StripeConfig {
	return payment.StripeConfig{
		SecretKey:         s.SecretKey,
		PublishableKey:    s.PublishableKey,
		APIURL:            s.APIURL,
		ReturnURL:         s.ReturnURL,
		MaxNetworkRetries: int64(s.MaxNetworkRetries),
		Timeout:           timeout,
	}
}
