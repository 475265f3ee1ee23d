// Package notify turns workflow events into stored notifications. Delivery
// from kafka is at-least-once; the inbox table makes handling idempotent.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nazeru/phoneshop-go/pkg/contracts"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

type Notification struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id,omitempty"`
	AccountID string         `json:"account_id,omitempty"`
	TxID      string         `json:"txid,omitempty"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink stores notifications. Save reports false when the event was already
// handled.
type Sink interface {
	Save(ctx context.Context, n Notification) (bool, error)
}

func str(p map[string]any, k string) string {
	if v, ok := p[k]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Render builds the human readable message of an event.
func Render(evt contracts.Event) Notification {
	p := evt.Payload
	var msg string
	switch evt.Type {
	case contracts.EventOrderCreated:
		msg = fmt.Sprintf("Order %s placed by %s, total %s", str(p, "order_number"), str(p, "phone"), str(p, "final_amount"))
	case contracts.EventOrderCancelled:
		msg = fmt.Sprintf("Order %s cancelled (was %s)", str(p, "order_number"), str(p, "from"))
	case contracts.EventOrderStatusChanged:
		msg = fmt.Sprintf("Order %s moved from %s to %s, payment %s", str(p, "order_number"), str(p, "from"), str(p, "to"), str(p, "payment_status"))
	case contracts.EventCustomerCreated:
		msg = fmt.Sprintf("Account %s created for %s", str(p, "username"), str(p, "phone"))
		if rotate, _ := p[contracts.FlagCredentialRotation].(bool); rotate {
			msg += "; password must be changed at first login"
		}
	case contracts.EventCustomerStatsDrift:
		msg = fmt.Sprintf("Customer %s stats went negative: %s orders, %s spent", str(p, "phone"), str(p, "total_orders"), str(p, "total_spent"))
	default:
		msg = "Event " + evt.Type
	}
	created := evt.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Notification{
		EventID:   evt.EventID,
		OrderID:   evt.OrderID,
		AccountID: evt.AccountID,
		TxID:      evt.TxID,
		Type:      evt.Type,
		Message:   msg,
		Payload:   p,
		CreatedAt: created,
	}
}

type Handler struct {
	Sink Sink

	// OnSaved is optional and called for every newly stored notification.
	OnSaved func(n Notification)
}

// Handle decodes one message value. Events without an id are dropped.
func (h *Handler) Handle(ctx context.Context, value []byte) error {
	var evt contracts.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if evt.EventID == "" {
		return nil
	}
	n := Render(evt)
	fresh, err := h.Sink.Save(ctx, n)
	if err != nil {
		return fmt.Errorf("save notification %s: %w", evt.EventID, err)
	}
	if !fresh {
		logging.Debug(logging.Fields{Service: "notification-service", EventID: evt.EventID, Message: "duplicate event skipped"})
		return nil
	}
	if h.OnSaved != nil {
		h.OnSaved(n)
	}
	logging.Log(logging.Fields{
		Service: "notification-service",
		TxID:    evt.TxID,
		OrderID: evt.OrderID,
		EventID: evt.EventID,
		Step:    evt.Type,
		Status:  "emitted",
		Message: n.Message,
	})
	return nil
}

// MemorySink keeps notifications in process, for tests and STORE=memory.
type MemorySink struct {
	mu    sync.Mutex
	seen  map[string]bool
	items []Notification
}

func NewMemorySink() *MemorySink {
	return &MemorySink{seen: map[string]bool{}}
}

func (s *MemorySink) Save(_ context.Context, n Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[n.EventID] {
		return false, nil
	}
	s.seen[n.EventID] = true
	s.items = append(s.items, n)
	return true, nil
}

func (s *MemorySink) All() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

// Recent returns up to limit notifications, newest first.
func (s *MemorySink) Recent(_ context.Context, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}
