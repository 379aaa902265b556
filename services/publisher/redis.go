package publisher

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"strconv"

	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes to a set of Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher. Messages are spread over
// streamCount streams named "<prefix>:0" .. "<prefix>:<n-1>".
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks that Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping", err)
	}
	return nil
}

// Publish publishes a message to a Redis stream
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	encoded := base64.StdEncoding.EncodeToString(message)
	stream := p.streamName()

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: int64(p.streamMaxLength),
		Approx: true,
		Values: map[string]interface{}{
			key: encoded,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher("redis", "xadd "+stream, err)
	}

	p.log.Debug().Str("stream", stream).Str("key", key).Int("bytes", len(message)).Msg("Published message")
	return nil
}

func (p *RedisPublisher) streamName() string {
	if p.streamCount == 1 {
		return p.streamPrefix + ":0"
	}
	return p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	for i := 0; i < p.streamCount; i++ {
		stream := p.streamPrefix + ":" + strconv.Itoa(i)
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher("redis", "xtrim "+stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
