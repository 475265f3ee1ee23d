// Package catalog is the product administration surface: listing, editing,
// low-stock alerts and bulk import.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

const DefaultLowStockThreshold = 10

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) List(ctx context.Context, f store.ProductFilter) ([]domain.Product, error) {
	switch f.Sort {
	case "", store.SortNewest, store.SortPriceAsc, store.SortPriceDesc, store.SortRating, store.SortName:
	default:
		return nil, domain.Validationf("invalid sort %q", f.Sort)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, domain.Validationf("minPrice must not exceed maxPrice")
	}
	return s.store.Products().List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.store.Products().Get(ctx, id)
}

func prepare(p *domain.Product) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	p.Brand = strings.TrimSpace(p.Brand)
	if p.Category == "" {
		p.Category = domain.DefaultCategory
	}
	return p.Validate()
}

func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = ""
	if err := prepare(&p); err != nil {
		return domain.Product{}, err
	}
	if err := s.store.Products().Create(ctx, &p); err != nil {
		return domain.Product{}, err
	}
	logging.Log(logging.Fields{
		Service: "catalog",
		Message: "product created",
		Extra:   map[string]any{"product_id": p.ID, "slug": p.Slug},
	})
	return p, nil
}

// Update applies a JSON merge patch to the stored product. A stock value in
// the patch is applied as the difference from the stock read here, so units
// sold in the meantime stay sold.
func (s *Service) Update(ctx context.Context, id string, patch json.RawMessage) (domain.Product, error) {
	p, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	read := p.Stock
	if err := json.Unmarshal(patch, &p); err != nil {
		return domain.Product{}, domain.Validationf("invalid product patch: %v", err)
	}
	p.ID = id
	if err := prepare(&p); err != nil {
		return domain.Product{}, err
	}
	delta := p.Stock - read

	err = s.store.InTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		if err := uow.Products().Update(ctx, &p); err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}
		left, err := uow.Products().AdjustStock(ctx, id, delta)
		p.Stock = left
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Products().Delete(ctx, id)
}

// LowStock lists products that are running out but not yet sold out.
func (s *Service) LowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.store.Products().LowStock(ctx, threshold, limit)
}

type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Import reads a JSON array of products, active unless they say otherwise.
// Products whose slug already exists are skipped; invalid entries are
// reported and skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var in []json.RawMessage
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return ImportResult{}, domain.Validationf("invalid product file: %v", err)
	}

	var res ImportResult
	for i, raw := range in {
		p := domain.Product{Active: true}
		err := json.Unmarshal(raw, &p)
		if err == nil {
			err = prepare(&p)
		}
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		err = s.store.Products().Create(ctx, &p)
		switch {
		case errors.Is(err, domain.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Imported++
		}
	}
	logging.Log(logging.Fields{
		Service: "catalog",
		Message: "products imported",
		Extra:   map[string]any{"imported": res.Imported, "skipped": res.Skipped},
	})
	return res, nil
}

// BackfillOrderImages copies the current product thumbnail into order items
// stored without an image and returns how many orders changed. Items whose
// product no longer exists are left alone.
func (s *Service) BackfillOrderImages(ctx context.Context) (int, error) {
	orders, err := s.store.Orders().ListMissingImages(ctx)
	if err != nil {
		return 0, err
	}
	thumbs := map[string]string{}
	updated := 0
	for _, o := range orders {
		items := append([]domain.OrderItem(nil), o.Items...)
		changed := false
		for i := range items {
			if items[i].ProductImage != "" {
				continue
			}
			thumb, ok := thumbs[items[i].ProductID]
			if !ok {
				p, err := s.store.Products().Get(ctx, items[i].ProductID)
				switch {
				case errors.Is(err, domain.ErrNotFound):
				case err != nil:
					return updated, err
				default:
					thumb = p.Thumbnail
				}
				thumbs[items[i].ProductID] = thumb
			}
			if thumb != "" {
				items[i].ProductImage = thumb
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := s.store.Orders().UpdateItems(ctx, o.ID, items); err != nil {
			return updated, fmt.Errorf("order %s: %w", o.OrderNumber, err)
		}
		updated++
	}
	return updated, nil
}
