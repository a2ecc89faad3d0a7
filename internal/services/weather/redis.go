package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrEmptyAddress = errors.New("redis address is required")

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(address, password string, db int) (*redis.Client, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", address, err)
	}
	return client, nil
}
