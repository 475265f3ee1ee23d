package workflow

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/tx"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/contracts"
	"github.com/nazeru/phoneshop-go/pkg/logging"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

// Created is the result of CreateOrder. Replayed is set when the order was
// found by its idempotency key instead of being created.
type Created struct {
	Order           domain.Order
	Replayed        bool
	CustomerCreated bool
}

// createRun carries state between the steps of one CreateOrder call.
type createRun struct {
	in     CreateOrderInput
	demand []demand
	order  domain.Order
	hash   string

	reserved     []demand
	customer     domain.Customer
	created      bool
	priorProfile domain.CustomerProfile
	events       []contracts.Event
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Created, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return Created{}, err
	}
	if in.IdempotencyKey != "" {
		if o, err := s.store.Orders().FindByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
			return Created{Order: o, Replayed: true}, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return Created{}, err
		}
	}

	run := &createRun{in: in, demand: sumDemand(in.Items)}
	if err := s.prepare(ctx, run); err != nil {
		s.countRejection(err)
		return Created{}, err
	}

	err := s.exec.Run(ctx, "create_order", s.createSteps(run))
	if err != nil {
		s.countRejection(err)
		if in.IdempotencyKey != "" && errors.Is(err, domain.ErrConflict) {
			if o, ferr := s.store.Orders().FindByIdempotencyKey(ctx, in.IdempotencyKey); ferr == nil {
				return Created{Order: o, Replayed: true}, nil
			}
		}
		return Created{}, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	logging.Log(logging.Fields{
		Service: "order-workflow",
		OrderID: run.order.ID,
		Status:  string(run.order.OrderStatus),
		Message: "order created",
		Extra: map[string]any{
			"order_number":     run.order.OrderNumber,
			"final_amount":     run.order.FinalAmount.String(),
			"customer_created": run.created,
			"tx_mode":          string(s.exec.Mode()),
		},
	})
	return Created{Order: run.order, CustomerCreated: run.created}, nil
}

// prepare checks every item before anything is mutated and builds the order
// snapshot from current product data.
func (s *Service) prepare(ctx context.Context, run *createRun) error {
	products := make(map[string]domain.Product, len(run.demand))
	for _, d := range run.demand {
		p, err := s.store.Products().Get(ctx, d.ProductID)
		if err != nil {
			return err
		}
		if !p.Active {
			return domain.NotFoundf("product %s not found", d.ProductID)
		}
		if p.Stock < d.Quantity {
			return &domain.InsufficientStockError{ProductID: p.ID, Title: p.Title, Available: p.Stock, Requested: d.Quantity}
		}
		products[p.ID] = p
	}

	items := make([]domain.OrderItem, 0, len(run.in.Items))
	for _, it := range run.in.Items {
		items = append(items, domain.NewOrderItem(products[it.ProductID], it.Quantity))
	}
	total, final := domain.Totals(items, run.in.Discount)
	if run.in.Discount.GreaterThan(total) {
		return domain.Validationf("discount %s exceeds order total %s", run.in.Discount, total)
	}

	c := run.in.Customer
	run.order = domain.Order{
		Customer:       domain.CustomerSnapshot{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address},
		Items:          items,
		TotalAmount:    total,
		Discount:       run.in.Discount,
		FinalAmount:    final,
		PaymentMethod:  run.in.PaymentMethod,
		PaymentStatus:  domain.PaymentStatusPending,
		OrderStatus:    domain.OrderStatusPending,
		Note:           run.in.Note,
		CreatedBy:      run.in.CreatedBy,
		IdempotencyKey: run.in.IdempotencyKey,
		CreatedAt:      s.now(),
	}

	// bcrypt is slow; hash outside the transaction when the phone is new.
	if _, err := s.store.Customers().FindByPhone(ctx, c.Phone); errors.Is(err, domain.ErrNotFound) {
		hash, err := s.hasher.Hash(domain.InitialCustomerSecret(c.Phone))
		if err != nil {
			return err
		}
		run.hash = hash
	}
	return nil
}

func (s *Service) createSteps(run *createRun) []tx.Step {
	return []tx.Step{
		{Name: common.StepReserveStock, Do: run.reserve, Compensate: run.release},
		{Name: common.StepResolveCustomer, Do: s.resolveCustomer(run), Compensate: run.unresolveCustomer},
		{Name: common.StepAssignOrderNumber, Do: s.assignNumber(run)},
		{Name: common.StepRecordCustomerStats, Do: run.recordStats, Compensate: run.revertStats},
		{Name: common.StepPersistOrder, Do: s.persist(run), Compensate: run.unpersist},
		s.enqueue(&run.events),
	}
}

// reserve is the first step. It resets the run so a transaction retried by
// the driver starts clean.
func (r *createRun) reserve(ctx context.Context, uow store.UnitOfWork) error {
	r.reserved = r.reserved[:0]
	r.customer = domain.Customer{}
	r.created = false
	r.events = r.events[:0]
	for _, d := range r.demand {
		if _, err := uow.Products().ReserveStock(ctx, d.ProductID, d.Quantity); err != nil {
			// a saga never compensates the failing step itself
			if rerr := r.release(ctx, uow); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		r.reserved = append(r.reserved, d)
	}
	return nil
}

func (r *createRun) release(ctx context.Context, uow store.UnitOfWork) error {
	var errs []error
	for _, d := range r.reserved {
		errs = append(errs, uow.Products().ReleaseStock(ctx, d.ProductID, d.Quantity))
	}
	r.reserved = r.reserved[:0]
	return errors.Join(errs...)
}

func (s *Service) resolveCustomer(run *createRun) func(ctx context.Context, uow store.UnitOfWork) error {
	return func(ctx context.Context, uow store.UnitOfWork) error {
		in := run.in.Customer
		c, err := uow.Customers().FindByPhone(ctx, in.Phone)
		if errors.Is(err, domain.ErrNotFound) {
			cerr := s.createCustomer(ctx, uow, run)
			if cerr == nil || !errors.Is(cerr, domain.ErrConflict) {
				return cerr
			}
			// another order created this phone first
			c, err = uow.Customers().FindByPhone(ctx, in.Phone)
			if errors.Is(err, domain.ErrNotFound) {
				return cerr
			}
		}
		if err != nil {
			return err
		}

		run.priorProfile = c.CustomerProfile
		profile := c.CustomerProfile
		profile.FullName = in.Name
		if in.Email != "" {
			profile.Email = in.Email
		}
		if in.Address != "" {
			profile.Address = in.Address
		}
		run.customer, err = uow.Customers().UpdateProfile(ctx, c.AccountID, profile)
		return err
	}
}

func (s *Service) createCustomer(ctx context.Context, uow store.UnitOfWork, run *createRun) error {
	in := run.in.Customer
	if run.hash == "" {
		hash, err := s.hasher.Hash(domain.InitialCustomerSecret(in.Phone))
		if err != nil {
			return err
		}
		run.hash = hash
	}
	c := domain.Customer{
		Credentials: domain.Credentials{
			Username:           domain.CustomerUsername(in.Phone),
			PasswordHash:       run.hash,
			MustRotatePassword: true,
			Active:             true,
		},
		CustomerProfile: domain.CustomerProfile{FullName: in.Name, Email: in.Email, Address: in.Address},
		Phone:           in.Phone,
		CustomerStats:   domain.CustomerStats{TotalSpent: decimal.Zero},
	}
	if err := uow.Customers().Create(ctx, &c); err != nil {
		return err
	}
	run.customer = c
	run.created = true
	run.events = append(run.events, s.event(contracts.EventCustomerCreated, "", c.AccountID, map[string]any{
		"phone":                          c.Phone,
		"username":                       c.Username,
		contracts.FlagCredentialRotation: true,
	}))
	return nil
}

func (r *createRun) unresolveCustomer(ctx context.Context, uow store.UnitOfWork) error {
	if r.customer.AccountID == "" {
		return nil
	}
	if r.created {
		return uow.Customers().Delete(ctx, r.customer.AccountID)
	}
	_, err := uow.Customers().UpdateProfile(ctx, r.customer.AccountID, r.priorProfile)
	return err
}

func (s *Service) assignNumber(run *createRun) func(ctx context.Context, uow store.UnitOfWork) error {
	return func(ctx context.Context, uow store.UnitOfWork) error {
		day := run.order.CreatedAt.In(s.loc)
		seq, err := uow.Sequences().Next(ctx, domain.OrderDay(day))
		if err != nil {
			return err
		}
		run.order.OrderNumber, err = domain.FormatOrderNumber(day, seq)
		return err
	}
}

func (r *createRun) recordStats(ctx context.Context, uow store.UnitOfWork) error {
	at := r.order.CreatedAt
	c, err := uow.Customers().AdjustStats(ctx, r.customer.AccountID, domain.StatsDelta{
		Orders:      1,
		Spent:       r.order.TotalAmount,
		LastOrderAt: &at,
	})
	if err != nil {
		return err
	}
	r.customer = c
	r.order.CustomerID = c.AccountID
	return nil
}

func (r *createRun) revertStats(ctx context.Context, uow store.UnitOfWork) error {
	_, err := uow.Customers().AdjustStats(ctx, r.customer.AccountID, domain.StatsDelta{
		Orders: -1,
		Spent:  r.order.TotalAmount.Neg(),
	})
	return err
}

func (s *Service) persist(run *createRun) func(ctx context.Context, uow store.UnitOfWork) error {
	return func(ctx context.Context, uow store.UnitOfWork) error {
		run.order.ID = ""
		if err := uow.Orders().Insert(ctx, &run.order); err != nil {
			return err
		}
		o := run.order
		run.events = append(run.events, s.event(contracts.EventOrderCreated, o.ID, o.CustomerID, map[string]any{
			"order_number": o.OrderNumber,
			"phone":        o.Customer.Phone,
			"final_amount": o.FinalAmount.String(),
			"items":        len(o.Items),
		}))
		return nil
	}
}

func (r *createRun) unpersist(ctx context.Context, uow store.UnitOfWork) error {
	return uow.Orders().Delete(ctx, r.order.ID)
}

func (s *Service) countRejection(err error) {
	if s.metrics != nil && errors.Is(err, domain.ErrInsufficientStock) {
		s.metrics.StockRejections.Inc()
	}
}
