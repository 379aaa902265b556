package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_r", 1, 100)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	err := client.XGroupCreateMkStream(ctx, "test_stream_r:0", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	messages := make(chan string, 1)

	go func() {
		result, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_r:0", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    2 * time.Second,
		}).Result()
		if !assert.NoError(t, err) {
			return
		}
		messages <- result[0].Messages[0].Values["refresh_summary"].(string)
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish(ctx, "refresh_summary", []byte("test_message"))
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", msg) // base64 of "test_message"
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams(ctx))
}

func TestStreamName(t *testing.T) {
	single := NewRedisPublisher("localhost:6379", 0, "deals", 0, 10)
	defer single.Close()
	assert.Equal(t, "deals:0", single.streamName())

	multi := NewRedisPublisher("localhost:6379", 0, "deals", 3, 10)
	defer multi.Close()
	for i := 0; i < 20; i++ {
		name := multi.streamName()
		assert.Contains(t, []string{"deals:0", "deals:1", "deals:2"}, name)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), "k", []byte("v")))
	assert.NoError(t, p.TrimStreams(context.Background()))
	assert.NoError(t, p.Close())
}
