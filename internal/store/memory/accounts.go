package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

type customerRepo struct{ u *uow }

func (r customerRepo) Get(ctx context.Context, id string) (domain.Customer, error) {
	var out domain.Customer
	err := r.u.read(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.NotFoundf("customer %s not found", id)
		}
		out = c
		return nil
	})
	return out, err
}

func (r customerRepo) FindByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	var out domain.Customer
	err := r.u.read(ctx, func(st *state) error {
		for _, c := range st.customers {
			if c.Phone == phone {
				out = c
				return nil
			}
		}
		return domain.NotFoundf("customer with phone %s not found", phone)
	})
	return out, err
}

func (r customerRepo) List(ctx context.Context, f store.CustomerFilter) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.u.read(ctx, func(st *state) error {
		for _, c := range st.customers {
			if f.Search == "" || containsFold(c.FullName, f.Search) || containsFold(c.Phone, f.Search) || containsFold(c.Email, f.Search) {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalSpent.Equal(out[j].TotalSpent) {
			return out[i].Phone < out[j].Phone
		}
		return out[i].TotalSpent.GreaterThan(out[j].TotalSpent)
	})
	if l := store.Limit(f.Limit); len(out) > l {
		out = out[:l]
	}
	return out, err
}

func (r customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	return r.u.write(ctx, func(st *state) error {
		for _, other := range st.customers {
			if other.Phone == c.Phone {
				return domain.Conflictf("customer with phone %s already exists", c.Phone)
			}
		}
		if st.usernameTaken(c.Username, "") {
			return domain.Conflictf("username %s already exists", c.Username)
		}
		if c.AccountID == "" {
			c.AccountID = uuid.NewString()
		}
		now := r.u.s.now()
		c.CreatedAt, c.UpdatedAt = now, now
		st.customers[c.AccountID] = *c
		return nil
	})
}

func (r customerRepo) UpdateProfile(ctx context.Context, id string, p domain.CustomerProfile) (domain.Customer, error) {
	var out domain.Customer
	err := r.u.write(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.NotFoundf("customer %s not found", id)
		}
		c.CustomerProfile = p
		c.UpdatedAt = r.u.s.now()
		st.customers[id] = c
		out = c
		return nil
	})
	return out, err
}

func (r customerRepo) AdjustStats(ctx context.Context, id string, d domain.StatsDelta) (domain.Customer, error) {
	var out domain.Customer
	err := r.u.write(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.NotFoundf("customer %s not found", id)
		}
		c.TotalOrders += d.Orders
		c.TotalSpent = c.TotalSpent.Add(d.Spent)
		if d.LastOrderAt != nil {
			t := *d.LastOrderAt
			c.LastOrderDate = &t
		}
		c.UpdatedAt = r.u.s.now()
		st.customers[id] = c
		out = c
		return nil
	})
	return out, err
}

func (r customerRepo) Delete(ctx context.Context, id string) error {
	return r.u.write(ctx, func(st *state) error {
		if _, ok := st.customers[id]; !ok {
			return domain.NotFoundf("customer %s not found", id)
		}
		delete(st.customers, id)
		return nil
	})
}

type accountRepo struct{ u *uow }

func (r accountRepo) CreateStaff(ctx context.Context, a *domain.StaffAccount) error {
	return r.u.write(ctx, func(st *state) error {
		if st.usernameTaken(a.Username, "") {
			return domain.Conflictf("username %s already exists", a.Username)
		}
		if a.AccountID == "" {
			a.AccountID = uuid.NewString()
		}
		now := r.u.s.now()
		a.CreatedAt, a.UpdatedAt = now, now
		st.staff[a.AccountID] = *a
		return nil
	})
}

func (r accountRepo) GetStaff(ctx context.Context, id string) (domain.StaffAccount, error) {
	var out domain.StaffAccount
	err := r.u.read(ctx, func(st *state) error {
		a, ok := st.staff[id]
		if !ok {
			return domain.NotFoundf("account %s not found", id)
		}
		out = a
		return nil
	})
	return out, err
}

func (r accountRepo) ListStaff(ctx context.Context, f store.AccountFilter) ([]domain.StaffAccount, error) {
	var out []domain.StaffAccount
	err := r.u.read(ctx, func(st *state) error {
		for _, a := range st.staff {
			if f.Role != "" && a.AccountRole != f.Role {
				continue
			}
			if f.Search != "" && !containsFold(a.Username, f.Search) && !containsFold(a.FullName, f.Search) && !containsFold(a.Email, f.Search) {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt) ||
			(out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].Username < out[j].Username)
	})
	if l := store.Limit(f.Limit); len(out) > l {
		out = out[:l]
	}
	return out, err
}

func (r accountRepo) UpdateStaff(ctx context.Context, a *domain.StaffAccount) error {
	return r.u.write(ctx, func(st *state) error {
		old, ok := st.staff[a.AccountID]
		if !ok {
			return domain.NotFoundf("account %s not found", a.AccountID)
		}
		if st.usernameTaken(a.Username, a.AccountID) {
			return domain.Conflictf("username %s already exists", a.Username)
		}
		a.PasswordHash = old.PasswordHash
		a.MustRotatePassword = old.MustRotatePassword
		a.CreatedAt = old.CreatedAt
		a.UpdatedAt = r.u.s.now()
		st.staff[a.AccountID] = *a
		return nil
	})
}

func (r accountRepo) FindByUsername(ctx context.Context, username string) (domain.Principal, error) {
	var out domain.Principal
	err := r.u.read(ctx, func(st *state) error {
		for _, c := range st.customers {
			if c.Username == username {
				c := c
				out = &c
				return nil
			}
		}
		for _, a := range st.staff {
			if a.Username == username {
				a := a
				out = &a
				return nil
			}
		}
		return domain.NotFoundf("account %s not found", username)
	})
	return out, err
}

func (r accountRepo) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	var out domain.Principal
	err := r.u.read(ctx, func(st *state) error {
		if c, ok := st.customers[id]; ok {
			out = &c
			return nil
		}
		if a, ok := st.staff[id]; ok {
			out = &a
			return nil
		}
		return domain.NotFoundf("account %s not found", id)
	})
	return out, err
}

func (r accountRepo) SetPassword(ctx context.Context, id, hash string, mustRotate bool) error {
	return r.u.write(ctx, func(st *state) error {
		now := r.u.s.now()
		if c, ok := st.customers[id]; ok {
			c.PasswordHash, c.MustRotatePassword, c.UpdatedAt = hash, mustRotate, now
			st.customers[id] = c
			return nil
		}
		if a, ok := st.staff[id]; ok {
			a.PasswordHash, a.MustRotatePassword, a.UpdatedAt = hash, mustRotate, now
			st.staff[id] = a
			return nil
		}
		return domain.NotFoundf("account %s not found", id)
	})
}

func (r accountRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.u.write(ctx, func(st *state) error {
		now := r.u.s.now()
		if c, ok := st.customers[id]; ok {
			c.Active, c.UpdatedAt = active, now
			st.customers[id] = c
			return nil
		}
		if a, ok := st.staff[id]; ok {
			a.Active, a.UpdatedAt = active, now
			st.staff[id] = a
			return nil
		}
		return domain.NotFoundf("account %s not found", id)
	})
}
