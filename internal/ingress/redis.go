package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSource subscribes to one pub/sub channel.
type RedisSource struct {
	cfg    Config
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSource parses cfg.URL and pings the server.
func NewRedisSource(ctx context.Context, cfg Config, logger *zap.Logger) (*RedisSource, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisSource{cfg: cfg, client: client, logger: logger}, nil
}

// Run subscribes and handles messages in publish order. The client
// re-subscribes on its own after a dropped connection.
func (s *RedisSource) Run(ctx context.Context, h Handler) error {
	sub := s.client.Subscribe(ctx, s.cfg.Channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.cfg.Channel, err)
	}
	s.logger.Info("listening for events",
		zap.String("source", KindRedis),
		zap.String("channel", s.cfg.Channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", s.cfg.Channel)
			}
			deliver(ctx, KindRedis, h, []byte(msg.Payload), s.logger)
		}
	}
}

// Publish sends payload to the configured channel.
func (s *RedisSource) Publish(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, s.cfg.Channel, payload).Err()
}

// Close releases the client.
func (s *RedisSource) Close() error { return s.client.Close() }
