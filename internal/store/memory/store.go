// Package memory is an in-process store. It backs tests and STORE=memory
// demo runs. Transactions are serialized and rolled back by restoring a
// snapshot taken when the transaction began.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

type state struct {
	products  map[string]domain.Product
	customers map[string]domain.Customer
	staff     map[string]domain.StaffAccount
	orders    map[string]domain.Order
	sequences map[string]int
	outbox    []outbox.Record
}

func newState() *state {
	return &state{
		products:  map[string]domain.Product{},
		customers: map[string]domain.Customer{},
		staff:     map[string]domain.StaffAccount{},
		orders:    map[string]domain.Order{},
		sequences: map[string]int{},
	}
}

// clone copies the maps. Values are replaced, never mutated in place, so a
// shallow copy of each entry is enough.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.staff {
		c.staff[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	c.outbox = append([]outbox.Record(nil), st.outbox...)
	return c
}

func (st *state) usernameTaken(username, exceptID string) bool {
	for id, c := range st.customers {
		if id != exceptID && c.Username == username {
			return true
		}
	}
	for id, a := range st.staff {
		if id != exceptID && a.Username == username {
			return true
		}
	}
	return false
}

type Store struct {
	// txMu serializes transactions and writes made outside of one.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	log  *txLog
	now  func() time.Time
}

func New() *Store {
	return &Store{st: newState(), log: newTxLog(), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the clock used for timestamps the store fills in.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) root() *uow { return &uow{s: s} }

func (s *Store) Products() store.ProductRepository   { return s.root().Products() }
func (s *Store) Customers() store.CustomerRepository { return s.root().Customers() }
func (s *Store) Accounts() store.AccountRepository   { return s.root().Accounts() }
func (s *Store) Orders() store.OrderRepository       { return s.root().Orders() }
func (s *Store) Sequences() store.SequenceRepository { return s.root().Sequences() }
func (s *Store) Outbox() store.OutboxRepository      { return s.root().Outbox() }
func (s *Store) Reports() store.ReportRepository     { return reportRepo{s.root()} }
func (s *Store) TxLog() coordinator.TxLogStore       { return s.log }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &uow{s: s, tx: true}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close(context.Context) error    { return nil }

type uow struct {
	s  *Store
	tx bool
}

func (u *uow) Products() store.ProductRepository   { return productRepo{u} }
func (u *uow) Customers() store.CustomerRepository { return customerRepo{u} }
func (u *uow) Accounts() store.AccountRepository   { return accountRepo{u} }
func (u *uow) Orders() store.OrderRepository       { return orderRepo{u} }
func (u *uow) Sequences() store.SequenceRepository { return sequenceRepo{u} }
func (u *uow) Outbox() store.OutboxRepository      { return outboxRepo{u} }

func (u *uow) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !u.tx {
		u.s.txMu.Lock()
		defer u.s.txMu.Unlock()
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	return fn(u.s.st)
}

func (u *uow) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return fn(u.s.st)
}
