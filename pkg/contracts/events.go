package contracts

import "time"

type Event struct {
	EventID   string         `json:"event_id"`
	TxID      string         `json:"txid,omitempty"`
	OrderID   string         `json:"order_id,omitempty"`
	AccountID string         `json:"account_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// Key is the partition key: the order when there is one, else the account.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.AccountID
}

const (
	EventOrderCreated        = "order.created"
	EventOrderCancelled      = "order.cancelled"
	EventOrderStatusChanged  = "order.status_changed"
	EventCustomerCreated     = "customer.account_created"
	EventCustomerStatsDrift  = "customer.stats_drift"
	EventNotificationEmitted = "notification.emitted"
	FlagCredentialRotation   = "credential_rotation_required"
)
