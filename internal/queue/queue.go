// Package queue carries fan-out events between the publisher and the
// consumers. Delivery is at-least-once: a received message becomes visible
// again unless it is acknowledged before its visibility timeout.
package queue

import (
	"context"
	"errors"
	"time"
)

const DefaultVisibilityTimeout = 30 * time.Second

var ErrUnknownReceipt = errors.New("unknown receipt handle")

type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	// ReceiveCount is 1 on first delivery.
	ReceiveCount int
}

type Queue interface {
	Send(ctx context.Context, body string) error
	// Receive returns at most one message, or nil when none is available.
	Receive(ctx context.Context) (*Message, error)
	Acknowledge(ctx context.Context, receiptHandle string) error
}
