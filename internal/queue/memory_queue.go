package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Client and Consumer for development and tests.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []string
	processing []string
	notify     chan struct{}
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}
	q.mu.Lock()
	q.pending = append(q.pending, string(payload))
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (Delivery, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		if d, ok := q.claim(); ok {
			return d, true, nil
		}
		select {
		case <-ctx.Done():
			return Delivery{}, false, ctx.Err()
		case <-timer.C:
			return Delivery{}, false, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) claim() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Delivery{}, false
	}
	body := q.pending[0]
	q.pending = q.pending[1:]
	q.processing = append(q.processing, body)
	return Delivery{Body: body}, true
}

func (q *MemoryQueue) Ack(ctx context.Context, d Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, body := range q.processing {
		if body == d.Body {
			q.processing = append(q.processing[:i], q.processing[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) Recover(ctx context.Context) (int, error) {
	q.mu.Lock()
	moved := len(q.processing)
	q.pending = append(q.processing, q.pending...)
	q.processing = nil
	q.mu.Unlock()
	if moved > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return moved, nil
}

// Len reports the pending and claimed counts.
func (q *MemoryQueue) Len() (pending, processing int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.processing)
}

var (
	_ Client   = (*MemoryQueue)(nil)
	_ Consumer = (*MemoryQueue)(nil)
)
