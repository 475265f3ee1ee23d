package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

const orderColumns = `id, order_number, customer_id, customer_name, customer_phone, customer_email,
	customer_address, items, total_amount::text, discount::text, final_amount::text,
	payment_method, payment_status, order_status, note, created_by, COALESCE(idempotency_key, ''),
	created_at, updated_at`

type orderRepo struct{ q querier }

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var items []byte
	var total, discount, final string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Email,
		&o.Customer.Address, &items, &total, &discount, &final,
		&o.PaymentMethod, &o.PaymentStatus, &o.OrderStatus, &o.Note, &o.CreatedBy, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decode items of %s: %w", o.OrderNumber, err)
	}
	if o.TotalAmount, err = parseDecimal(total); err != nil {
		return o, err
	}
	if o.Discount, err = parseDecimal(discount); err != nil {
		return o, err
	}
	o.FinalAmount, err = parseDecimal(final)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(r)
	})
}

func (r orderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	return o, mapErr(err, "order "+id)
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key))
	return o, mapErr(err, "order for idempotency key")
}

func (r orderRepo) Insert(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `INSERT INTO orders(
		id, order_number, customer_id, customer_name, customer_phone, customer_email, customer_address,
		items, total_amount, discount, final_amount, payment_method, payment_status, order_status,
		note, created_by, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`,
		o.ID, o.OrderNumber, o.CustomerID, o.Customer.Name, o.Customer.Phone, o.Customer.Email, o.Customer.Address,
		items, o.TotalAmount, o.Discount, o.FinalAmount, string(o.PaymentMethod), string(o.PaymentStatus), string(o.OrderStatus),
		o.Note, o.CreatedBy, nullIfEmpty(o.IdempotencyKey), o.CreatedAt,
	)
	return mapErr(err, "order "+o.OrderNumber)
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "order "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("order %s not found", id)
	}
	return nil
}

func (r orderRepo) List(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	sql, args := orderListQuery(f)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "list orders")
	}
	os, err := collectOrders(rows)
	return os, mapErr(err, "list orders")
}

func (r orderRepo) CountByPhone(ctx context.Context, phone string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_phone = $1`, phone).Scan(&n)
	return n, mapErr(err, "count orders")
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, payment domain.PaymentStatus) (domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `UPDATE orders SET
		order_status = COALESCE(NULLIF($3, ''), order_status),
		payment_status = COALESCE(NULLIF($4, ''), payment_status),
		updated_at = now()
		WHERE id = $1 AND order_status = $2
		RETURNING `+orderColumns, id, string(from), string(to), string(payment)))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return o, mapErr(err, "update order status")
	}

	var current string
	if err := r.q.QueryRow(ctx, `SELECT order_status FROM orders WHERE id = $1`, id).Scan(&current); err != nil {
		return domain.Order{}, mapErr(err, "order "+id)
	}
	return domain.Order{}, domain.InvalidTransitionf("order %s is %s, not %s", id, current, from)
}

func (r orderRepo) ListMissingImages(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(items) it
			WHERE COALESCE(it->>'productImage', '') = ''
		)
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapErr(err, "orders missing images")
	}
	os, err := collectOrders(rows)
	return os, mapErr(err, "orders missing images")
}

func (r orderRepo) UpdateItems(ctx context.Context, id string, items []domain.OrderItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `UPDATE orders SET items = $2, updated_at = now() WHERE id = $1`, id, data)
	if err != nil {
		return mapErr(err, "order "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("order %s not found", id)
	}
	return nil
}

type sequenceRepo struct{ q querier }

func (r sequenceRepo) Next(ctx context.Context, day string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `INSERT INTO order_sequences(day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value`, day).Scan(&n)
	return n, mapErr(err, "order sequence")
}

type outboxRepo struct{ q querier }

func (r outboxRepo) Insert(ctx context.Context, rec outbox.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx, `INSERT INTO outbox(id, event_id, topic, key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.EventID, rec.Topic, rec.Key, []byte(rec.Payload), rec.CreatedAt)
	return mapErr(err, "outbox event "+rec.EventID)
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := r.q.Query(ctx, `SELECT id, event_id, topic, key, payload, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err, "outbox fetch")
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Record, error) {
		var rec outbox.Record
		var payload []byte
		err := row.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &rec.CreatedAt)
		rec.Payload = payload
		return rec, err
	})
	return recs, mapErr(err, "outbox fetch")
}

func (r outboxRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id)
	return mapErr(err, "outbox mark sent")
}

type txLogRepo struct{ q querier }

func (r txLogRepo) Create(ctx context.Context, txid common.TxID, workflow string, steps []common.StepName) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `INSERT INTO saga_tx_log(txid, workflow, steps, status) VALUES ($1, $2, $3, $4)`,
		string(txid), workflow, data, string(common.TxStarted))
	return mapErr(err, "saga log")
}

func (r txLogRepo) SetStatus(ctx context.Context, txid common.TxID, status common.TxStatus, failedAt common.StepName) error {
	_, err := r.q.Exec(ctx, `UPDATE saga_tx_log SET status = $2,
		failed_at = COALESCE(NULLIF($3, ''), failed_at), updated_at = now() WHERE txid = $1`,
		string(txid), string(status), string(failedAt))
	return mapErr(err, "saga log")
}

func (r txLogRepo) Get(ctx context.Context, txid common.TxID) (coordinator.Entry, error) {
	var e coordinator.Entry
	var steps []byte
	err := r.q.QueryRow(ctx, `SELECT txid, workflow, steps, status, failed_at, created_at, updated_at
		FROM saga_tx_log WHERE txid = $1`, string(txid)).
		Scan(&e.TxID, &e.Workflow, &steps, &e.Status, &e.FailedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, mapErr(err, "saga tx "+string(txid))
	}
	if err := json.Unmarshal(steps, &e.Steps); err != nil {
		return e, fmt.Errorf("decode saga steps: %w", err)
	}
	return e, nil
}
