package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/pkg/contracts"
)

type sliceStore struct {
	recs []Record
}

func (s *sliceStore) FetchPending(_ context.Context, limit int) ([]Record, error) {
	var out []Record
	for _, r := range s.recs {
		if r.SentAt == nil && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *sliceStore) MarkSent(_ context.Context, id string) error {
	for i := range s.recs {
		if s.recs[i].ID == id {
			now := time.Now()
			s.recs[i].SentAt = &now
			return nil
		}
	}
	return errors.New("missing")
}

type capture struct {
	keys   []string
	failAt int
}

func (c *capture) Publish(_ context.Context, _, key string, _ []byte) error {
	if c.failAt > 0 && len(c.keys)+1 == c.failAt {
		return errors.New("broker down")
	}
	c.keys = append(c.keys, key)
	return nil
}

func record(t *testing.T, id, orderID string) Record {
	t.Helper()
	rec, err := NewRecord("phoneshop.events", contracts.Event{
		EventID:   "evt-" + id,
		OrderID:   orderID,
		Type:      contracts.EventOrderCreated,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	rec.ID = id
	return rec
}

func TestNewRecordUsesEventKey(t *testing.T) {
	rec, err := NewRecord("topic", contracts.Event{EventID: "e1", AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", rec.Key)
	assert.Equal(t, "e1", rec.EventID)
	assert.Contains(t, string(rec.Payload), `"account_id":"acc-1"`)
}

func TestDrainOncePublishesInOrder(t *testing.T) {
	st := &sliceStore{recs: []Record{record(t, "1", "o1"), record(t, "2", "o2")}}
	pub := &capture{}
	var published int
	r := &Relay{Store: st, Publisher: pub, OnPublished: func(n int) { published += n }}

	n, err := r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"o1", "o2"}, pub.keys)
	assert.Equal(t, 2, published)

	n, err = r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainOnceLeavesFailedRecordPending(t *testing.T) {
	st := &sliceStore{recs: []Record{record(t, "1", "o1"), record(t, "2", "o2")}}
	r := &Relay{Store: st, Publisher: &capture{failAt: 2}}

	n, err := r.DrainOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, st.recs[0].SentAt)
	assert.Nil(t, st.recs[1].SentAt)
}

func TestDrainOnceWithoutPublisher(t *testing.T) {
	r := &Relay{Store: &sliceStore{}}
	_, err := r.DrainOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoPublisher)
}
