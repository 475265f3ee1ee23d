package notify

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nazeru/phoneshop-go/pkg/logging"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Consumer struct {
	Reader  MessageReader
	Handler *Handler

	// Backoff is the pause after a read error. Defaults to 2s.
	Backoff time.Duration
}

// Run reads until ctx is done. Messages that fail to decode or save are
// logged and skipped; the reader's group commits them.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logging.Error(logging.Fields{Service: "notification-service", Message: "kafka read failed"}, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		if err := c.Handler.Handle(ctx, msg.Value); err != nil {
			logging.Error(logging.Fields{
				Service: "notification-service",
				Message: "event handling failed",
				Extra:   map[string]any{"partition": msg.Partition, "offset": msg.Offset, "key": string(msg.Key)},
			}, err)
		}
	}
}
