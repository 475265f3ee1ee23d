package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nazeru/phoneshop-go/pkg/contracts"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

type Record struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// NewRecord encodes an event for the outbox table.
func NewRecord(topic string, evt contracts.Event) (Record, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		EventID:   evt.EventID,
		Topic:     topic,
		Key:       evt.Key(),
		Payload:   data,
		CreatedAt: evt.CreatedAt,
	}, nil
}

// Store is the pending side of the outbox, implemented by every storage
// backend.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

var ErrNoPublisher = errors.New("outbox: publisher not configured")

// Relay drains pending outbox records to the publisher in insertion order.
// A record is marked sent only after a successful publish, so delivery is
// at-least-once.
type Relay struct {
	Store     Store
	Publisher Publisher
	Batch     int
	Interval  time.Duration

	// OnPublished is called with the number of records sent per drain.
	OnPublished func(n int)
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return 100
	}
	return r.Batch
}

func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	if r.Publisher == nil {
		return 0, ErrNoPublisher
	}
	recs, err := r.Store.FetchPending(ctx, r.batch())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range recs {
		if err := r.Publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			return sent, err
		}
		if err := r.Store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 && r.OnPublished != nil {
		r.OnPublished(sent)
	}
	return sent, nil
}

// Run drains until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := r.DrainOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error(logging.Fields{Service: "outbox-relay", Message: "outbox drain failed"}, err)
		}
		// keep draining while full batches come back
		if err == nil && n == r.batch() {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
