package workflow

import (
	"context"
	"errors"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/tx"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/contracts"
	"github.com/nazeru/phoneshop-go/pkg/logging"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

// CancelOrder cancels an order that is not delivered or already cancelled,
// returns its stock and takes it out of the customer's aggregates.
func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return s.cancel(ctx, o, "")
}

type cancelRun struct {
	from    domain.Order
	payment domain.PaymentStatus
	order   domain.Order

	restored []demand
	customer string
	events   []contracts.Event
}

func (s *Service) cancel(ctx context.Context, o domain.Order, payment domain.PaymentStatus) (domain.Order, error) {
	switch o.OrderStatus {
	case domain.OrderStatusDelivered:
		return domain.Order{}, domain.InvalidTransitionf("order %s is delivered and cannot be cancelled", o.OrderNumber)
	case domain.OrderStatusCancelled:
		return domain.Order{}, domain.InvalidTransitionf("order %s is already cancelled", o.OrderNumber)
	}

	run := &cancelRun{from: o, payment: payment}
	steps := []tx.Step{
		{Name: common.StepMarkCancelled, Do: run.mark, Compensate: run.unmark},
		{Name: common.StepRestoreStock, Do: run.restore, Compensate: run.unrestore},
		{Name: common.StepRevertCustomerStats, Do: s.revertStats(run), Compensate: run.reapplyStats},
		s.enqueue(&run.events),
	}
	if err := s.exec.Run(ctx, "cancel_order", steps); err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	logging.Log(logging.Fields{
		Service: "order-workflow",
		OrderID: o.ID,
		Status:  string(domain.OrderStatusCancelled),
		Message: "order cancelled",
		Extra:   map[string]any{"order_number": o.OrderNumber, "from": string(o.OrderStatus)},
	})
	return run.order, nil
}

// mark is a compare-and-set from the observed status, so of two concurrent
// cancels only one gets past this step.
func (r *cancelRun) mark(ctx context.Context, uow store.UnitOfWork) error {
	r.restored = r.restored[:0]
	r.customer = ""
	r.events = r.events[:0]
	o, err := uow.Orders().UpdateStatus(ctx, r.from.ID, r.from.OrderStatus, domain.OrderStatusCancelled, r.payment)
	if err != nil {
		return err
	}
	r.order = o
	return nil
}

func (r *cancelRun) unmark(ctx context.Context, uow store.UnitOfWork) error {
	_, err := uow.Orders().UpdateStatus(ctx, r.from.ID, domain.OrderStatusCancelled, r.from.OrderStatus, r.from.PaymentStatus)
	return err
}

// restore skips products deleted since the order was placed.
func (r *cancelRun) restore(ctx context.Context, uow store.UnitOfWork) error {
	for _, d := range itemDemand(r.from.Items) {
		err := uow.Products().ReleaseStock(ctx, d.ProductID, d.Quantity)
		if errors.Is(err, domain.ErrNotFound) {
			logging.Warn(logging.Fields{
				Service: "order-workflow",
				OrderID: r.from.ID,
				Message: "product of cancelled order no longer exists",
				Extra:   map[string]any{"product_id": d.ProductID},
			})
			continue
		}
		if err != nil {
			if uerr := r.unrestore(ctx, uow); uerr != nil {
				return errors.Join(err, uerr)
			}
			return err
		}
		r.restored = append(r.restored, d)
	}
	return nil
}

func (r *cancelRun) unrestore(ctx context.Context, uow store.UnitOfWork) error {
	var errs []error
	for _, d := range r.restored {
		_, err := uow.Products().ReserveStock(ctx, d.ProductID, d.Quantity)
		errs = append(errs, err)
	}
	r.restored = r.restored[:0]
	return errors.Join(errs...)
}

// revertStats looks the customer up by the order's phone snapshot. Totals
// that go negative are applied anyway and reported as drift.
func (s *Service) revertStats(run *cancelRun) func(ctx context.Context, uow store.UnitOfWork) error {
	return func(ctx context.Context, uow store.UnitOfWork) error {
		o := run.from
		c, err := uow.Customers().FindByPhone(ctx, o.Customer.Phone)
		if errors.Is(err, domain.ErrNotFound) {
			logging.Warn(logging.Fields{
				Service: "order-workflow",
				OrderID: o.ID,
				Message: "no customer for cancelled order phone",
				Extra:   map[string]any{"phone": o.Customer.Phone},
			})
			run.events = append(run.events, s.cancelledEvent(o))
			return nil
		}
		if err != nil {
			return err
		}

		c, err = uow.Customers().AdjustStats(ctx, c.AccountID, domain.StatsDelta{
			Orders: -1,
			Spent:  o.FinalAmount.Neg(),
		})
		if err != nil {
			return err
		}
		run.customer = c.AccountID
		run.events = append(run.events, s.cancelledEvent(o))

		if c.TotalOrders < 0 || c.TotalSpent.IsNegative() {
			logging.Warn(logging.Fields{
				Service: "order-workflow",
				OrderID: o.ID,
				Message: "customer stats went negative",
				Extra: map[string]any{
					"account_id":   c.AccountID,
					"total_orders": c.TotalOrders,
					"total_spent":  c.TotalSpent.String(),
				},
			})
			run.events = append(run.events, s.event(contracts.EventCustomerStatsDrift, o.ID, c.AccountID, map[string]any{
				"phone":        c.Phone,
				"total_orders": c.TotalOrders,
				"total_spent":  c.TotalSpent.String(),
			}))
		}
		return nil
	}
}

func (r *cancelRun) reapplyStats(ctx context.Context, uow store.UnitOfWork) error {
	if r.customer == "" {
		return nil
	}
	_, err := uow.Customers().AdjustStats(ctx, r.customer, domain.StatsDelta{Orders: 1, Spent: r.from.FinalAmount})
	return err
}

func (s *Service) cancelledEvent(o domain.Order) contracts.Event {
	return s.event(contracts.EventOrderCancelled, o.ID, o.CustomerID, map[string]any{
		"order_number": o.OrderNumber,
		"phone":        o.Customer.Phone,
		"from":         string(o.OrderStatus),
		"final_amount": o.FinalAmount.String(),
	})
}

// SetOrderStatus changes the order and/or payment status. Moving to
// cancelled goes through the cancel flow so stock is restored exactly once.
func (s *Service) SetOrderStatus(ctx context.Context, id string, u StatusUpdate) (domain.Order, error) {
	if err := u.validate(); err != nil {
		return domain.Order{}, err
	}
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	to := u.OrderStatus
	if to == o.OrderStatus {
		to = ""
	}
	if to == domain.OrderStatusCancelled {
		if err := s.policy.Check(o.OrderStatus, to); err != nil {
			return domain.Order{}, err
		}
		return s.cancel(ctx, o, u.PaymentStatus)
	}
	if to != "" {
		if err := s.policy.Check(o.OrderStatus, to); err != nil {
			return domain.Order{}, err
		}
	}

	var updated domain.Order
	var events []contracts.Event
	steps := []tx.Step{
		{
			Name: common.StepUpdateStatus,
			Do: func(ctx context.Context, uow store.UnitOfWork) error {
				events = events[:0]
				var err error
				updated, err = uow.Orders().UpdateStatus(ctx, o.ID, o.OrderStatus, to, u.PaymentStatus)
				if err != nil {
					return err
				}
				events = append(events, s.event(contracts.EventOrderStatusChanged, o.ID, o.CustomerID, map[string]any{
					"order_number":   o.OrderNumber,
					"from":           string(o.OrderStatus),
					"to":             string(updated.OrderStatus),
					"payment_status": string(updated.PaymentStatus),
				}))
				return nil
			},
			Compensate: func(ctx context.Context, uow store.UnitOfWork) error {
				_, err := uow.Orders().UpdateStatus(ctx, o.ID, updated.OrderStatus, o.OrderStatus, o.PaymentStatus)
				return err
			},
		},
		s.enqueue(&events),
	}
	if err := s.exec.Run(ctx, "set_order_status", steps); err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil && to != "" {
		s.metrics.StatusChanges.WithLabelValues(string(to)).Inc()
	}
	logging.Log(logging.Fields{
		Service: "order-workflow",
		OrderID: o.ID,
		Status:  string(updated.OrderStatus),
		Message: "order status updated",
		Extra:   map[string]any{"from": string(o.OrderStatus), "payment_status": string(updated.PaymentStatus)},
	})
	return updated, nil
}
