// Package workflow implements order placement, cancellation and status
// changes over the store ports. Every mutating operation runs through a
// tx.Executor so its steps commit or roll back together.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/tx"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/contracts"
	"github.com/nazeru/phoneshop-go/pkg/metrics"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

// PasswordHasher hashes the initial secret of auto-created customers.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

type Options struct {
	Policy  domain.TransitionPolicy
	Metrics *metrics.WorkflowMetrics

	// Location decides the calendar day of order numbers. Defaults to UTC.
	Location *time.Location

	// Topic is the outbox topic of workflow events.
	Topic string

	Clock func() time.Time
}

type Service struct {
	store  store.Store
	exec   tx.Executor
	hasher PasswordHasher

	policy  domain.TransitionPolicy
	loc     *time.Location
	metrics *metrics.WorkflowMetrics
	topic   string
	now     func() time.Time
}

const DefaultTopic = "phoneshop.events"

func New(st store.Store, exec tx.Executor, hasher PasswordHasher, opts Options) *Service {
	s := &Service{
		store:   st,
		exec:    exec,
		hasher:  hasher,
		policy:  opts.Policy,
		loc:     opts.Location,
		metrics: opts.Metrics,
		topic:   opts.Topic,
		now:     opts.Clock,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.topic == "" {
		s.topic = DefaultTopic
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *Service) Policy() domain.TransitionPolicy { return s.policy }

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.store.Orders().Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Validationf("invalid order status %q", f.Status)
	}
	if f.Phone != "" {
		f.Phone = domain.NormalizePhone(f.Phone)
	}
	return s.store.Orders().List(ctx, f)
}

func (s *Service) event(typ, orderID, accountID string, payload map[string]any) contracts.Event {
	return contracts.Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		AccountID: accountID,
		CreatedAt: s.now(),
		Type:      typ,
		Payload:   payload,
	}
}

// enqueue writes events to the outbox of uow. It is the last step of every
// workflow, so it never needs a compensation.
func (s *Service) enqueue(events *[]contracts.Event) tx.Step {
	return tx.Step{
		Name: common.StepEnqueueEvents,
		Do: func(ctx context.Context, uow store.UnitOfWork) error {
			for _, evt := range *events {
				rec, err := outbox.NewRecord(s.topic, evt)
				if err != nil {
					return err
				}
				if err := uow.Outbox().Insert(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
