package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

// latestTTL bounds how long the last summary stays readable after the bot
// stops publishing.
const latestTTL = 24 * time.Hour

// Options configures a Publisher.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Channel receives one JSON CycleSummary per cycle. The latest summary
	// is also stored under Channel + ":latest".
	Channel string
}

// Publisher publishes cycle summaries to Redis. It implements
// domain.CycleObserver.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewPublisher connects to Redis and verifies the connection. The caller
// should call Close when the publisher is no longer needed.
func NewPublisher(ctx context.Context, opts Options, logger *slog.Logger) (*Publisher, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Publisher{client: client, channel: opts.Channel, logger: logger}, nil
}

// CycleCompleted publishes the summary and stores it as the latest one.
func (p *Publisher) CycleCompleted(ctx context.Context, summary domain.CycleSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal cycle summary: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	if err := p.client.Set(ctx, p.channel+":latest", data, latestTTL).Err(); err != nil {
		return fmt.Errorf("store latest summary: %w", err)
	}

	p.logger.Debug("published cycle summary", "channel", p.channel, "run_id", summary.RunID, "receivers", receivers)
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
