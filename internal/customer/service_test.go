package customer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
)

func seedCustomer(t *testing.T, st *memory.Store, name, phone string, spent int64) domain.Customer {
	t.Helper()
	c := domain.Customer{
		Credentials:     domain.Credentials{Username: domain.CustomerUsername(phone), Active: true},
		CustomerProfile: domain.CustomerProfile{FullName: name, Email: name + "@example.com"},
		Phone:           phone,
		CustomerStats:   domain.CustomerStats{TotalSpent: decimal.NewFromInt(spent)},
	}
	require.NoError(t, st.Customers().Create(context.Background(), &c))
	return c
}

func seedOrder(t *testing.T, st *memory.Store, number, phone string, at time.Time) {
	t.Helper()
	o := domain.Order{
		OrderNumber: number,
		Customer:    domain.CustomerSnapshot{Name: "x", Phone: phone, Address: "a"},
		OrderStatus: domain.OrderStatusPending,
		CreatedAt:   at,
	}
	require.NoError(t, st.Orders().Insert(context.Background(), &o))
}

func TestListSortsBySpent(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	seedCustomer(t, st, "lan", "0900000001", 100)
	seedCustomer(t, st, "minh", "0900000002", 300)
	seedCustomer(t, st, "hoa", "0900000003", 200)

	all, err := svc.List(context.Background(), store.CustomerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"minh", "hoa", "lan"}, []string{all[0].FullName, all[1].FullName, all[2].FullName})

	found, err := svc.List(context.Background(), store.CustomerFilter{Search: " HOA "})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "0900000003", found[0].Phone)
}

func TestByPhone(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	seedCustomer(t, st, "lan", "0900000001", 0)

	c, err := svc.ByPhone(context.Background(), "0900-000-001")
	require.NoError(t, err)
	assert.Equal(t, "lan", c.FullName)

	_, err = svc.ByPhone(context.Background(), "0911111111")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ByPhone(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHistoryNewestFirst(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	seedOrder(t, st, "ORD202405010001", "0900000001", base)
	seedOrder(t, st, "ORD202405010002", "0900000002", base.Add(time.Hour))
	seedOrder(t, st, "ORD202405020001", "0900000001", base.Add(24*time.Hour))

	got, err := svc.History(context.Background(), "0900000001", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ORD202405020001", got[0].OrderNumber)
	assert.Equal(t, "ORD202405010001", got[1].OrderNumber)
}

func TestUpdateProfile(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	c := seedCustomer(t, st, "lan", "0900000001", 0)

	addr := " 12 Le Loi "
	got, err := svc.UpdateProfile(context.Background(), c.AccountID, ProfileUpdate{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "12 Le Loi", got.Address)
	assert.Equal(t, "lan", got.FullName)
	assert.Equal(t, "lan@example.com", got.Email)

	empty := ""
	_, err = svc.UpdateProfile(context.Background(), c.AccountID, ProfileUpdate{FullName: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteRefusesCustomerWithOrders(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st)
	busy := seedCustomer(t, st, "lan", "0900000001", 0)
	idle := seedCustomer(t, st, "minh", "0900000002", 0)
	seedOrder(t, st, "ORD202405010001", busy.Phone, time.Now())

	assert.ErrorIs(t, svc.Delete(ctx, busy.AccountID), domain.ErrConflict)
	require.NoError(t, svc.Delete(ctx, idle.AccountID))
	assert.ErrorIs(t, svc.Delete(ctx, idle.AccountID), domain.ErrNotFound)
}
