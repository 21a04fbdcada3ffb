package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"marketcore/internal/model"
)

// latestTTL bounds how long a "latest value" key survives without a fresh
// write, mirroring the teacher's redis.Writer defaultLatestTTL.
const latestTTL = 30 * time.Minute

// RedisSink publishes through Redis: a pipelined SET (with TTL, update-or-
// insert semantics) plus a PUBLISH on the deterministic channel, grounded on
// the teacher's internal/store/redis.Writer.
type RedisSink struct {
	client *goredis.Client
}

// NewRedisSink wraps an already-connected Redis client.
func NewRedisSink(client *goredis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// PublishIndicator implements model.PublishSink.
func (s *RedisSink) PublishIndicator(ctx context.Context, sample model.IndicatorSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("redissink: marshal indicator: %w", err)
	}
	channel := sample.Channel()

	pipe := s.client.Pipeline()
	pipe.Set(ctx, "ind:latest:"+channel, data, latestTTL)
	pipe.Publish(ctx, channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redissink: publish indicator %s: %w", channel, err)
	}
	return nil
}

// PublishCandle implements model.PublishSink.
func (s *RedisSink) PublishCandle(ctx context.Context, exchange model.Exchange, market model.Market, interval model.Interval, candle model.Candle) error {
	data, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("redissink: marshal candle: %w", err)
	}
	channel := model.MarketChannel(exchange, market) + "_" + string(interval)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, "candle:latest:"+channel, data, latestTTL)
	pipe.Publish(ctx, channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redissink: publish candle %s: %w", channel, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
