package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
)

func phone(title string, price int64, stock int) domain.Product {
	return domain.Product{
		Title:     title,
		Slug:      strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Brand:     "Acme",
		Thumbnail: "https://img.example/" + title + ".png",
		Price:     decimal.NewFromInt(price),
		Stock:     stock,
		Active:    true,
	}
}

func TestCreateValidatesAndDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	p, err := svc.Create(ctx, phone("Alpha One", 100, 5))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.DefaultCategory, p.Category)

	_, err = svc.Create(ctx, phone("Alpha One", 120, 1))
	assert.ErrorIs(t, err, domain.ErrConflict)

	bad := phone("Beta", 100, 1)
	bad.Thumbnail = ""
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())
	p, err := svc.Create(ctx, phone("Alpha", 100, 5))
	require.NoError(t, err)

	got, err := svc.Update(ctx, p.ID, json.RawMessage(`{"price":"150","stock":9,"id":"other"}`))
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 9, got.Stock)
	assert.Equal(t, "Alpha", got.Title)

	_, err = svc.Update(ctx, p.ID, json.RawMessage(`{"title":""}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Update(ctx, "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// sellingStore sells units behind the catalog's back right after each read.
type sellingStore struct {
	*memory.Store
	sell func(ctx context.Context, id string)
}

func (s sellingStore) Products() store.ProductRepository {
	return sellingProducts{ProductRepository: s.Store.Products(), sell: s.sell}
}

type sellingProducts struct {
	store.ProductRepository
	sell func(ctx context.Context, id string)
}

func (r sellingProducts) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := r.ProductRepository.Get(ctx, id)
	if err == nil {
		r.sell(ctx, id)
	}
	return p, err
}

func TestUpdateKeepsConcurrentSales(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p, err := NewService(st).Create(ctx, phone("Alpha", 100, 5))
	require.NoError(t, err)

	sold := 0
	svc := NewService(sellingStore{Store: st, sell: func(ctx context.Context, id string) {
		_, err := st.Products().ReserveStock(ctx, id, sold)
		require.NoError(t, err)
	}})

	sold = 5
	got, err := svc.Update(ctx, p.ID, json.RawMessage(`{"price":"120"}`))
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, 0, got.Stock)
	stored, err := st.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stock)

	_, err = st.Products().AdjustStock(ctx, p.ID, 4)
	require.NoError(t, err)
	sold = 2
	got, err = svc.Update(ctx, p.ID, json.RawMessage(`{"stock":10}`))
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)

	sold = 8
	_, err = svc.Update(ctx, p.ID, json.RawMessage(`{"stock":1,"price":"99"}`))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	stored, err = st.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stock)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(120)))
}

func TestListRejectsBadFilters(t *testing.T) {
	svc := NewService(memory.New())
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)

	_, err := svc.List(context.Background(), store.ProductFilter{MinPrice: &lo, MaxPrice: &hi})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.List(context.Background(), store.ProductFilter{Sort: "random"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())
	for _, p := range []domain.Product{phone("A", 1, 0), phone("B", 1, 3), phone("C", 1, 10), phone("D", 1, 11), phone("E", 1, 1)} {
		_, err := svc.Create(ctx, p)
		require.NoError(t, err)
	}

	got, err := svc.LowStock(ctx, 0, 0)
	require.NoError(t, err)
	var titles []string
	for _, p := range got {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"E", "B", "C"}, titles)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st)
	_, err := svc.Create(ctx, phone("Alpha", 100, 5))
	require.NoError(t, err)

	file := `[
		{"title":"Alpha","slug":"alpha","brand":"Acme","thumbnail":"a.png","price":"100","stock":1},
		{"title":"Gamma","slug":"gamma","brand":"Acme","thumbnail":"g.png","price":"300","stock":4},
		{"title":"","slug":"nameless","brand":"Acme","thumbnail":"n.png","price":"1","stock":1}
	]`
	res, err := svc.Import(ctx, strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "item 2")

	list, err := st.Products().List(ctx, store.ProductFilter{Search: "gamma"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Active)

	_, err = svc.Import(ctx, strings.NewReader(`{"not":"an array"}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBackfillOrderImages(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st)
	p, err := svc.Create(ctx, phone("Alpha", 100, 5))
	require.NoError(t, err)

	missing := domain.Order{
		OrderNumber: "ORD202405010001",
		Items: []domain.OrderItem{
			{ProductID: p.ID, ProductName: "Alpha", Quantity: 1},
			{ProductID: "gone", ProductName: "Old", Quantity: 1},
		},
	}
	complete := domain.Order{
		OrderNumber: "ORD202405010002",
		Items:       []domain.OrderItem{{ProductID: p.ID, ProductImage: "kept.png", Quantity: 1}},
	}
	require.NoError(t, st.Orders().Insert(ctx, &missing))
	require.NoError(t, st.Orders().Insert(ctx, &complete))

	n, err := svc.BackfillOrderImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Orders().Get(ctx, missing.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Thumbnail, got.Items[0].ProductImage)
	assert.Empty(t, got.Items[1].ProductImage)

	n, err = svc.BackfillOrderImages(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
