package messaging

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultMemoryBuffer = 256

// ErrBufferFull is returned by MemoryClient.Publish when no consumer keeps up.
var ErrBufferFull = errors.New("memory bus buffer full; message dropped")

// MemoryClient is an in-process bus: published messages are delivered to
// whoever is consuming. Publish never waits: once the buffer is full the
// message is dropped.
type MemoryClient struct {
	topic   string
	ch      chan Message
	mu      sync.Mutex
	offset  int64
	dropped int64
}

// NewMemoryClient returns a bus holding up to buffer undelivered messages.
func NewMemoryClient(topic string, buffer int) *MemoryClient {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryClient{topic: topic, ch: make(chan Message, buffer)}
}

// Publish enqueues a copy of the message, or drops it with ErrBufferFull.
func (m *MemoryClient) Publish(ctx context.Context, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.offset++
	msg := Message{
		Topic:   m.topic,
		Key:     append([]byte(nil), key...),
		Value:   append([]byte(nil), value...),
		Headers: eventHeaders(key, value),
		Offset:  m.offset,
		Time:    time.Now().UTC(),
	}
	m.mu.Unlock()

	select {
	case m.ch <- msg:
		return nil
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		return ErrBufferFull
	}
}

// Consume hands messages to handler until ctx is done. Failed messages are
// not redelivered.
func (m *MemoryClient) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.ch:
			_ = handler(ctx, msg)
		}
	}
}

// Topic returns the bus topic name.
func (m *MemoryClient) Topic() string { return m.topic }

// Dropped reports how many messages were discarded on a full buffer.
func (m *MemoryClient) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Pending reports how many messages are waiting for a consumer.
func (m *MemoryClient) Pending() int { return len(m.ch) }
