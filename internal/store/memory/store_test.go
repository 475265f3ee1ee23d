package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

func seedProduct(t *testing.T, s *Store, slug string, price int64, stock int) domain.Product {
	t.Helper()
	p := domain.Product{
		Title:     slug,
		Slug:      slug,
		Brand:     "Acme",
		Thumbnail: slug + ".png",
		Price:     decimal.NewFromInt(price),
		Stock:     stock,
		Active:    true,
	}
	require.NoError(t, s.Products().Create(context.Background(), &p))
	return p
}

func TestReserveStockIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-a", 100, 5)

	left, err := s.Products().ReserveStock(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.Zero(t, left)

	_, err = s.Products().ReserveStock(ctx, p.ID, 1)
	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 0, short.Available)
	assert.Equal(t, 1, short.Requested)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = s.Products().ReserveStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockMovesNeedUnits(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-c", 100, 5)

	for _, qty := range []int{0, -3} {
		_, err := s.Products().ReserveStock(ctx, p.ID, qty)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, s.Products().ReleaseStock(ctx, p.ID, qty), domain.ErrValidation)
	}

	left, err := s.Products().AdjustStock(ctx, p.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 3, left)
	_, err = s.Products().AdjustStock(ctx, p.ID, -4)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestUpdateLeavesStockAlone(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-d", 100, 5)

	p.Stock = 50
	p.Price = decimal.NewFromInt(90)
	require.NoError(t, s.Products().Update(ctx, &p))
	assert.Equal(t, 5, p.Stock)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(90)))
}

func TestReserveStockConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-b", 100, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Products().ReserveStock(ctx, p.ID, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
}

func TestInTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-c", 100, 3)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		if _, err := uow.Products().ReserveStock(ctx, p.ID, 2); err != nil {
			return err
		}
		if _, err := uow.Sequences().Next(ctx, "20250101"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	n, err := s.Sequences().Next(ctx, "20250101")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCustomerUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := domain.Customer{Phone: "0900000000"}
	c.Username = domain.CustomerUsername(c.Phone)
	require.NoError(t, s.Customers().Create(ctx, &c))
	assert.NotEmpty(t, c.AccountID)

	dup := domain.Customer{Phone: "0900000000"}
	dup.Username = "someone_else"
	assert.ErrorIs(t, s.Customers().Create(ctx, &dup), domain.ErrConflict)

	staff := domain.StaffAccount{AccountRole: domain.RoleStaff}
	staff.Username = c.Username
	assert.ErrorIs(t, s.Accounts().CreateStaff(ctx, &staff), domain.ErrConflict)

	pr, err := s.Accounts().FindByUsername(ctx, c.Username)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, pr.Role())
	assert.Equal(t, c.AccountID, pr.PrincipalID())
}

func TestAdjustStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := domain.Customer{Phone: "0911111111"}
	c.Username = "user_0911111111"
	require.NoError(t, s.Customers().Create(ctx, &c))

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err := s.Customers().AdjustStats(ctx, c.AccountID, domain.StatsDelta{Orders: 1, Spent: decimal.NewFromInt(250), LastOrderAt: &now})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
	assert.True(t, got.TotalSpent.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, got.LastOrderDate)

	got, err = s.Customers().AdjustStats(ctx, c.AccountID, domain.StatsDelta{Orders: -1, Spent: decimal.NewFromInt(-250)})
	require.NoError(t, err)
	assert.Zero(t, got.TotalOrders)
	assert.True(t, got.TotalSpent.IsZero())
	assert.Equal(t, now, *got.LastOrderDate)
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := domain.Order{OrderNumber: "ORD202501010001", OrderStatus: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending}
	require.NoError(t, s.Orders().Insert(ctx, &o))

	got, err := s.Orders().UpdateStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)

	_, err = s.Orders().UpdateStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	dup := domain.Order{OrderNumber: o.OrderNumber}
	assert.ErrorIs(t, s.Orders().Insert(ctx, &dup), domain.ErrConflict)
}

func TestSequenceIsPerDay(t *testing.T) {
	s := New()
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		n, err := s.Sequences().Next(ctx, "20250101")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := s.Sequences().Next(ctx, "20250102")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProductListFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	cheap := seedProduct(t, s, "cheap", 100, 1)
	seedProduct(t, s, "pricey", 900, 1)
	hidden := domain.Product{Title: "hidden", Slug: "hidden", Brand: "Acme", Thumbnail: "x", Price: decimal.NewFromInt(50)}
	require.NoError(t, s.Products().Create(ctx, &hidden))

	ceiling := decimal.NewFromInt(500)
	got, err := s.Products().List(ctx, store.ProductFilter{MaxPrice: &ceiling})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cheap.ID, got[0].ID)

	got, err = s.Products().List(ctx, store.ProductFilter{IncludeInactive: true, Sort: store.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "hidden", got[0].Slug)
	assert.Equal(t, "pricey", got[2].Slug)

	dup := domain.Product{Title: "again", Slug: "cheap", Brand: "Acme", Thumbnail: "x"}
	assert.ErrorIs(t, s.Products().Create(ctx, &dup), domain.ErrConflict)
}

func TestReportsSeparateCancelledRevenue(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "phone-r", 100, 10)
	day1 := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	insert := func(num string, at time.Time, amount int64, status domain.OrderStatus, qty int) {
		item := domain.NewOrderItem(p, qty)
		o := domain.Order{
			OrderNumber: num,
			CreatedAt:   at,
			OrderStatus: status,
			Customer:    domain.CustomerSnapshot{Name: "Lan", Phone: "0900000000"},
			Items:       []domain.OrderItem{item},
			TotalAmount: decimal.NewFromInt(amount),
			FinalAmount: decimal.NewFromInt(amount),
		}
		require.NoError(t, s.Orders().Insert(ctx, &o))
	}
	insert("ORD202501100001", day1, 100, domain.OrderStatusCancelled, 1)
	insert("ORD202502030001", day2, 200, domain.OrderStatusDelivered, 2)

	buckets, err := s.Reports().RevenueByPeriod(ctx, domain.PeriodMonth, domain.DateRange{}, time.UTC)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2025-02", buckets[0].Bucket)
	assert.True(t, buckets[0].TotalRevenue.Equal(decimal.NewFromInt(200)))

	stats, err := s.Reports().OrderStats(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.CancelledOrders)
	assert.Equal(t, 1, stats.CompletedOrders)
	assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(300)))
	assert.True(t, stats.NetRevenue.Equal(decimal.NewFromInt(200)))
	assert.True(t, stats.AverageOrderValue.Equal(decimal.NewFromInt(150)))

	best, err := s.Reports().BestSelling(ctx, 10)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, 2, best[0].TotalQuantity)
	assert.Equal(t, "phone-r.png", best[0].Image)

	cs, err := s.Reports().CustomerStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, cs.Overview.TotalCustomers)
	assert.Equal(t, 2, cs.Overview.TotalOrders)
	assert.True(t, cs.Overview.TotalRevenue.Equal(decimal.NewFromInt(300)))
	assert.True(t, cs.Overview.NetRevenue.Equal(decimal.NewFromInt(200)))
	require.Len(t, cs.TopCustomers, 1)
	assert.Equal(t, "Lan", cs.TopCustomers[0].FullName)
}
