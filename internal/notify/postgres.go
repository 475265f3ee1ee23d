package notify

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink writes to the inbox and notifications tables of the shop schema.
type PGSink struct {
	Pool *pgxpool.Pool
}

func (s PGSink) Save(ctx context.Context, n Notification) (bool, error) {
	data, err := json.Marshal(n.Payload)
	if err != nil {
		return false, err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `INSERT INTO inbox(event_id, received_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, n.EventID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `INSERT INTO notifications(event_id, order_id, account_id, txid, type, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (event_id) DO NOTHING`,
		n.EventID, n.OrderID, n.AccountID, n.TxID, n.Type, n.Message, string(data), n.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Recent lists the latest notifications, newest first.
func (s PGSink) Recent(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT event_id, order_id, account_id, txid, type, message, payload, created_at
		FROM notifications ORDER BY created_at DESC, event_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		var n Notification
		var payload []byte
		if err := row.Scan(&n.EventID, &n.OrderID, &n.AccountID, &n.TxID, &n.Type, &n.Message, &payload, &n.CreatedAt); err != nil {
			return n, err
		}
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return n, err
		}
		return n, nil
	})
}
