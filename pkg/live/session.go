package live

import (
	"context"
)

// MediaChunk is one outbound block of media.
type MediaChunk struct {
	Data     []byte
	MIMEType string
}

// Dialer opens live sessions.
type Dialer interface {
	// Open establishes the duplex channel. It honours ctx cancellation
	// while connecting; the returned session outlives ctx.
	Open(ctx context.Context, cfg Config) (Session, error)
}

// Session is an open duplex channel.
type Session interface {
	// Events returns the inbound event channel. It is closed after the
	// terminal event.
	Events() <-chan Event

	// Send queues a chunk for transmission without blocking. Chunks are
	// written in the order they were queued.
	Send(chunk MediaChunk) error

	// Close tears the channel down. It is idempotent and safe after the
	// remote side has closed.
	Close() error
}

// Stats reports per-session counters.
type Stats struct {
	ChunksSent    int64 `json:"chunks_sent"`
	ChunksDropped int64 `json:"chunks_dropped"`
	EventsDropped int64 `json:"events_dropped"`
}
