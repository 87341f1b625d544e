package queue

import (
	"context"
	"time"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Consumer receives and acknowledges queue deliveries. A delivery that is
// never acknowledged stays claimed until Recover returns it to the queue.
type Consumer interface {
	Receive(ctx context.Context, wait time.Duration) (Delivery, bool, error)
	Ack(ctx context.Context, d Delivery) error
	Recover(ctx context.Context) (int, error)
}

// Delivery is one claimed message body.
type Delivery struct {
	Body string
}
