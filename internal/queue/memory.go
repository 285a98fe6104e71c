package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryMessage struct {
	id           string
	body         string
	receipt      string
	visibleAt    time.Time
	receiveCount int
}

// MemoryQueue is an in-process Queue with SQS-like visibility semantics.
type MemoryQueue struct {
	mu                sync.Mutex
	messages          []*memoryMessage
	visibilityTimeout time.Duration
	now               func() time.Time
}

func NewMemoryQueue(visibilityTimeout time.Duration) *MemoryQueue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = DefaultVisibilityTimeout
	}
	return &MemoryQueue{visibilityTimeout: visibilityTimeout, now: time.Now}
}

func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, &memoryMessage{id: uuid.NewString(), body: body})
	return nil
}

// Receive hands out the oldest visible message and hides it for the
// visibility timeout. Each delivery gets a new receipt handle.
func (q *MemoryQueue) Receive(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, m := range q.messages {
		if now.Before(m.visibleAt) {
			continue
		}
		m.visibleAt = now.Add(q.visibilityTimeout)
		m.receipt = uuid.NewString()
		m.receiveCount++
		return &Message{ID: m.id, Body: m.body, ReceiptHandle: m.receipt, ReceiveCount: m.receiveCount}, nil
	}
	return nil, nil
}

// Acknowledge deletes the message. A stale receipt, from a delivery that
// has since been superseded, is rejected.
func (q *MemoryQueue) Acknowledge(ctx context.Context, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if receiptHandle == "" {
		return ErrUnknownReceipt
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.receipt == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return ErrUnknownReceipt
}

// Len counts messages not yet acknowledged, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
