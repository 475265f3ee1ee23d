package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/pkg/contracts"
)

func encode(t *testing.T, evt contracts.Event) []byte {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return b
}

func TestRender(t *testing.T) {
	cases := []struct {
		evt  contracts.Event
		want string
	}{
		{
			contracts.Event{Type: contracts.EventOrderCreated, Payload: map[string]any{"order_number": "ORD202405010001", "phone": "0900000000", "final_amount": "400"}},
			"Order ORD202405010001 placed by 0900000000, total 400",
		},
		{
			contracts.Event{Type: contracts.EventOrderStatusChanged, Payload: map[string]any{"order_number": "ORD1", "from": "pending", "to": "shipping", "payment_status": "paid"}},
			"Order ORD1 moved from pending to shipping, payment paid",
		},
		{
			contracts.Event{Type: contracts.EventCustomerCreated, Payload: map[string]any{"username": "user_0900000000", "phone": "0900000000", contracts.FlagCredentialRotation: true}},
			"Account user_0900000000 created for 0900000000; password must be changed at first login",
		},
		{
			contracts.Event{Type: "something.else"},
			"Event something.else",
		},
	}
	for _, c := range cases {
		t.Run(c.evt.Type, func(t *testing.T) {
			assert.Equal(t, c.want, Render(c.evt).Message)
		})
	}
}

func TestHandleIsIdempotent(t *testing.T) {
	sink := NewMemorySink()
	var saved int
	h := &Handler{Sink: sink, OnSaved: func(Notification) { saved++ }}
	evt := contracts.Event{EventID: "e1", OrderID: "o1", Type: contracts.EventOrderCancelled, Payload: map[string]any{"order_number": "ORD1", "from": "pending"}}

	require.NoError(t, h.Handle(context.Background(), encode(t, evt)))
	require.NoError(t, h.Handle(context.Background(), encode(t, evt)))

	all := sink.All()
	require.Len(t, all, 1)
	assert.Equal(t, "o1", all[0].OrderID)
	assert.Equal(t, "Order ORD1 cancelled (was pending)", all[0].Message)
	assert.Equal(t, 1, saved)
}

func TestMemorySinkRecent(t *testing.T) {
	sink := NewMemorySink()
	for _, id := range []string{"a", "b", "c"} {
		_, err := sink.Save(context.Background(), Notification{EventID: id})
		require.NoError(t, err)
	}
	got, err := sink.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].EventID)
	assert.Equal(t, "b", got[1].EventID)
}

func TestHandleSkipsEventsWithoutID(t *testing.T) {
	sink := NewMemorySink()
	h := &Handler{Sink: sink}
	require.NoError(t, h.Handle(context.Background(), encode(t, contracts.Event{Type: contracts.EventOrderCreated})))
	assert.Empty(t, sink.All())
	assert.Error(t, h.Handle(context.Background(), []byte("not json")))
}

type scriptedReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
	errs int
	done func()
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs > 0 {
		r.errs--
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.msgs) == 0 {
		r.done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func TestConsumerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := NewMemorySink()
	reader := &scriptedReader{
		errs: 1,
		msgs: []kafka.Message{
			{Value: encode(t, contracts.Event{EventID: "a", Type: contracts.EventOrderCreated})},
			{Value: []byte("garbage")},
			{Value: encode(t, contracts.Event{EventID: "b", Type: contracts.EventOrderCancelled})},
		},
		done: cancel,
	}

	finished := make(chan struct{})
	go func() {
		(&Consumer{Reader: reader, Handler: &Handler{Sink: sink}, Backoff: time.Millisecond}).Run(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Len(t, sink.All(), 2)
}
