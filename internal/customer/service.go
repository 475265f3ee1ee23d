// Package customer serves the back-office view of customers. Customers are
// created by the order workflow, never here.
package customer

import (
	"context"
	"strings"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) List(ctx context.Context, f store.CustomerFilter) ([]domain.Customer, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.store.Customers().List(ctx, f)
}

func (s *Service) ByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	phone = domain.NormalizePhone(phone)
	if err := domain.ValidatePhone(phone); err != nil {
		return domain.Customer{}, err
	}
	return s.store.Customers().FindByPhone(ctx, phone)
}

// History lists the orders placed with phone, newest first. It does not
// require a customer record to exist.
func (s *Service) History(ctx context.Context, phone string, limit int) ([]domain.Order, error) {
	phone = domain.NormalizePhone(phone)
	if err := domain.ValidatePhone(phone); err != nil {
		return nil, err
	}
	return s.store.Orders().List(ctx, store.OrderFilter{Phone: phone, Limit: limit})
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Address  *string `json:"address"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (domain.Customer, error) {
	c, err := s.store.Customers().Get(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	p := c.CustomerProfile
	if u.FullName != nil {
		p.FullName = strings.TrimSpace(*u.FullName)
		if p.FullName == "" {
			return domain.Customer{}, domain.Validationf("fullName must not be empty")
		}
	}
	if u.Email != nil {
		p.Email = strings.TrimSpace(*u.Email)
	}
	if u.Address != nil {
		p.Address = strings.TrimSpace(*u.Address)
	}
	return s.store.Customers().UpdateProfile(ctx, id, p)
}

// Delete refuses customers that still have orders.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.store.Customers().Get(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.store.Orders().CountByPhone(ctx, c.Phone)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.Conflictf("customer %s has %d orders", c.Phone, n)
	}
	if err := s.store.Customers().Delete(ctx, id); err != nil {
		return err
	}
	logging.Log(logging.Fields{
		Service: "customer",
		Message: "customer deleted",
		Extra:   map[string]any{"account_id": id, "phone": c.Phone},
	})
	return nil
}
