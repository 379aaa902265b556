package publisher

import "context"

// Publisher represents a service for publishing refresh events
type Publisher interface {
	// Publish appends a message under key to one of the streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Nop discards every message. It stands in when no Redis is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, key string, message []byte) error { return nil }
func (Nop) TrimStreams(ctx context.Context) error                         { return nil }
func (Nop) Close() error                                                  { return nil }
