package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

type orderRepo struct{ u *uow }

func (r orderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := r.u.read(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.NotFoundf("order %s not found", id)
		}
		out = o
		return nil
	})
	return out, err
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	var out domain.Order
	err := r.u.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if key != "" && o.IdempotencyKey == key {
				out = o
				return nil
			}
		}
		return domain.NotFoundf("no order for idempotency key")
	})
	return out, err
}

func (r orderRepo) Insert(ctx context.Context, o *domain.Order) error {
	return r.u.write(ctx, func(st *state) error {
		for _, other := range st.orders {
			if other.OrderNumber == o.OrderNumber {
				return domain.Conflictf("order number %s already exists", o.OrderNumber)
			}
			if o.IdempotencyKey != "" && other.IdempotencyKey == o.IdempotencyKey {
				return domain.Conflictf("idempotency key already used")
			}
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		now := r.u.s.now()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = o.CreatedAt
		st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	return r.u.write(ctx, func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return domain.NotFoundf("order %s not found", id)
		}
		delete(st.orders, id)
		return nil
	})
}

func (r orderRepo) List(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	err := r.u.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if f.Status != "" && o.OrderStatus != f.Status {
				continue
			}
			if f.Phone != "" && o.Customer.Phone != f.Phone {
				continue
			}
			if f.OrderNumber != "" && o.OrderNumber != f.OrderNumber {
				continue
			}
			out = append(out, o)
		}
		return nil
	})
	sortNewest(out)
	if l := store.Limit(f.Limit); len(out) > l {
		out = out[:l]
	}
	return out, err
}

func sortNewest(os []domain.Order) {
	sort.SliceStable(os, func(i, j int) bool {
		if os[i].CreatedAt.Equal(os[j].CreatedAt) {
			return os[i].OrderNumber > os[j].OrderNumber
		}
		return os[i].CreatedAt.After(os[j].CreatedAt)
	})
}

func (r orderRepo) CountByPhone(ctx context.Context, phone string) (int, error) {
	n := 0
	err := r.u.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.Customer.Phone == phone {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, payment domain.PaymentStatus) (domain.Order, error) {
	var out domain.Order
	err := r.u.write(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.NotFoundf("order %s not found", id)
		}
		if o.OrderStatus != from {
			return domain.InvalidTransitionf("order %s is %s, not %s", o.OrderNumber, o.OrderStatus, from)
		}
		if to != "" {
			o.OrderStatus = to
		}
		if payment != "" {
			o.PaymentStatus = payment
		}
		o.UpdatedAt = r.u.s.now()
		st.orders[id] = o
		out = o
		return nil
	})
	return out, err
}

func (r orderRepo) ListMissingImages(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := r.u.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			for _, it := range o.Items {
				if it.ProductImage == "" {
					out = append(out, o)
					break
				}
			}
		}
		return nil
	})
	sortNewest(out)
	return out, err
}

func (r orderRepo) UpdateItems(ctx context.Context, id string, items []domain.OrderItem) error {
	return r.u.write(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.NotFoundf("order %s not found", id)
		}
		o.Items = append([]domain.OrderItem(nil), items...)
		o.UpdatedAt = r.u.s.now()
		st.orders[id] = o
		return nil
	})
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

type sequenceRepo struct{ u *uow }

func (r sequenceRepo) Next(ctx context.Context, day string) (int, error) {
	var n int
	err := r.u.write(ctx, func(st *state) error {
		st.sequences[day]++
		n = st.sequences[day]
		return nil
	})
	return n, err
}

type outboxRepo struct{ u *uow }

func (r outboxRepo) Insert(ctx context.Context, rec outbox.Record) error {
	return r.u.write(ctx, func(st *state) error {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		st.outbox = append(st.outbox, rec)
		return nil
	})
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	var out []outbox.Record
	err := r.u.read(ctx, func(st *state) error {
		for _, rec := range st.outbox {
			if rec.SentAt == nil {
				out = append(out, rec)
				if len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkSent(ctx context.Context, id string) error {
	return r.u.write(ctx, func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				now := r.u.s.now()
				st.outbox[i].SentAt = &now
				return nil
			}
		}
		return domain.NotFoundf("outbox record %s not found", id)
	})
}

// txLog is kept outside the snapshotted state: a rolled back transaction
// must not erase saga history.
type txLog struct {
	mu      sync.Mutex
	entries map[common.TxID]coordinator.Entry
}

func newTxLog() *txLog {
	return &txLog{entries: map[common.TxID]coordinator.Entry{}}
}

func (l *txLog) Create(_ context.Context, txid common.TxID, workflow string, steps []common.StepName) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	l.entries[txid] = coordinator.Entry{
		TxID:      txid,
		Workflow:  workflow,
		Steps:     append([]common.StepName(nil), steps...),
		Status:    common.TxStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (l *txLog) SetStatus(_ context.Context, txid common.TxID, status common.TxStatus, failedAt common.StepName) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[txid]
	if !ok {
		return domain.NotFoundf("tx %s not found", txid)
	}
	e.Status = status
	if failedAt != "" {
		e.FailedAt = failedAt
	}
	e.UpdatedAt = time.Now().UTC()
	l.entries[txid] = e
	return nil
}

func (l *txLog) Get(_ context.Context, txid common.TxID) (coordinator.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[txid]
	if !ok {
		return coordinator.Entry{}, domain.NotFoundf("tx %s not found", txid)
	}
	return e, nil
}
