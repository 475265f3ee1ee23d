package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

type productRepo struct{ u *uow }

func (r productRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var out domain.Product
	err := r.u.read(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %s not found", id)
		}
		out = p
		return nil
	})
	return out, err
}

func (r productRepo) List(ctx context.Context, f store.ProductFilter) ([]domain.Product, error) {
	var out []domain.Product
	err := r.u.read(ctx, func(st *state) error {
		for _, p := range st.products {
			if matchProduct(p, f) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortProducts(out, f.Sort)
	if limit := store.Limit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchProduct(p domain.Product, f store.ProductFilter) bool {
	if !f.IncludeInactive && !p.Active {
		return false
	}
	if f.Search != "" && !containsFold(p.Title, f.Search) && !containsFold(p.Description, f.Search) {
		return false
	}
	if f.Brand != "" && p.Brand != f.Brand {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.RAM != "" && !containsFold(p.RAM, f.RAM) {
		return false
	}
	if f.ROM != "" && !containsFold(p.ROM, f.ROM) {
		return false
	}
	return true
}

func sortProducts(ps []domain.Product, by store.ProductSort) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch by {
		case store.SortPriceAsc:
			return a.Price.LessThan(b.Price)
		case store.SortPriceDesc:
			return a.Price.GreaterThan(b.Price)
		case store.SortRating:
			return a.Rating > b.Rating
		case store.SortName:
			return a.Title < b.Title
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}

func (r productRepo) Create(ctx context.Context, p *domain.Product) error {
	return r.u.write(ctx, func(st *state) error {
		for _, other := range st.products {
			if other.Slug == p.Slug {
				return domain.Conflictf("product slug %q already exists", p.Slug)
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, ok := st.products[p.ID]; ok {
			return domain.Conflictf("product %s already exists", p.ID)
		}
		now := r.u.s.now()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		st.products[p.ID] = cloneProduct(*p)
		return nil
	})
}

func (r productRepo) Update(ctx context.Context, p *domain.Product) error {
	return r.u.write(ctx, func(st *state) error {
		old, ok := st.products[p.ID]
		if !ok {
			return domain.NotFoundf("product %s not found", p.ID)
		}
		for id, other := range st.products {
			if id != p.ID && other.Slug == p.Slug {
				return domain.Conflictf("product slug %q already exists", p.Slug)
			}
		}
		p.CreatedAt = old.CreatedAt
		p.Stock = old.Stock
		p.UpdatedAt = r.u.s.now()
		st.products[p.ID] = cloneProduct(*p)
		return nil
	})
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	return r.u.write(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return domain.NotFoundf("product %s not found", id)
		}
		delete(st.products, id)
		return nil
	})
}

func (r productRepo) LowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	var out []domain.Product
	err := r.u.read(ctx, func(st *state) error {
		for _, p := range st.products {
			if p.Stock > 0 && p.Stock <= threshold {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stock == out[j].Stock {
			return out[i].ID < out[j].ID
		}
		return out[i].Stock < out[j].Stock
	})
	if l := store.Limit(limit); len(out) > l {
		out = out[:l]
	}
	return out, err
}

func (r productRepo) ReserveStock(ctx context.Context, id string, qty int) (int, error) {
	if err := store.CheckQuantity(qty); err != nil {
		return 0, err
	}
	var left int
	err := r.u.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %s not found", id)
		}
		if p.Stock < qty {
			return &domain.InsufficientStockError{ProductID: id, Title: p.Title, Available: p.Stock, Requested: qty}
		}
		p.Stock -= qty
		p.UpdatedAt = r.u.s.now()
		st.products[id] = p
		left = p.Stock
		return nil
	})
	return left, err
}

func (r productRepo) ReleaseStock(ctx context.Context, id string, qty int) error {
	if err := store.CheckQuantity(qty); err != nil {
		return err
	}
	_, err := r.AdjustStock(ctx, id, qty)
	return err
}

func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var left int
	err := r.u.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %s not found", id)
		}
		if p.Stock+delta < 0 {
			return &domain.InsufficientStockError{ProductID: id, Title: p.Title, Available: p.Stock, Requested: -delta}
		}
		p.Stock += delta
		p.UpdatedAt = r.u.s.now()
		st.products[id] = p
		left = p.Stock
		return nil
	})
	return left, err
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string{}, p.Images...)
	p.Colors = append([]string{}, p.Colors...)
	return p
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
