package account

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewService(st, NewHasher(bcrypt.MinCost)), st
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
}

func TestHasherCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret-1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-1", hash)
	assert.NoError(t, h.Compare(hash, "secret-1"))
	assert.ErrorIs(t, h.Compare(hash, "secret-2"), domain.ErrUnauthenticated)
}

func TestCreateStaff(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	a, err := svc.CreateStaff(ctx, StaffInput{Username: " mai ", Password: "hunter22", FullName: "Mai"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.AccountID)
	assert.Equal(t, "mai", a.Username)
	assert.Equal(t, domain.RoleStaff, a.AccountRole)
	assert.True(t, a.Active)

	_, err = svc.CreateStaff(ctx, StaffInput{Username: "mai", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	cases := map[string]StaffInput{
		"no username":    {Password: "hunter22"},
		"short password": {Username: "x", Password: "123"},
		"long password":  {Username: "x", Password: strings.Repeat("p", 73)},
		"customer role":  {Username: "x", Password: "hunter22", Role: domain.RoleCustomer},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateStaff(ctx, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestUpdateAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.CreateStaff(ctx, StaffInput{Username: "mai", Password: "hunter22"})
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, StaffInput{Username: "boss", Password: "hunter22", Role: domain.RoleAdmin})
	require.NoError(t, err)

	name, role := "Mai Tran", domain.RoleAdmin
	got, err := svc.Update(ctx, a.AccountID, StaffUpdate{FullName: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Mai Tran", got.FullName)
	assert.Equal(t, domain.RoleAdmin, got.AccountRole)

	admins, err := svc.List(ctx, store.AccountFilter{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	bad := domain.Role("root")
	_, err = svc.Update(ctx, a.AccountID, StaffUpdate{Role: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Update(ctx, "missing", StaffUpdate{FullName: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.CreateStaff(ctx, StaffInput{Username: "mai", Password: "hunter22"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "mai", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, a.AccountID, res.Account.PrincipalID())
	assert.Equal(t, domain.RoleStaff, res.Role)
	assert.False(t, res.MustRotatePassword)

	_, err = svc.Login(ctx, "mai", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Deactivate(ctx, a.AccountID))
	_, err = svc.Login(ctx, "mai", "hunter22")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerLoginAndRotation(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	hash, err := svc.hasher.Hash(domain.InitialCustomerSecret("0900001234"))
	require.NoError(t, err)
	c := domain.Customer{
		Credentials:     domain.Credentials{Username: domain.CustomerUsername("0900001234"), PasswordHash: hash, MustRotatePassword: true, Active: true},
		CustomerProfile: domain.CustomerProfile{FullName: "Lan"},
		Phone:           "0900001234",
	}
	require.NoError(t, st.Customers().Create(ctx, &c))

	res, err := svc.Login(ctx, "user_0900001234", "1234")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, res.Role)
	assert.True(t, res.MustRotatePassword)

	assert.ErrorIs(t, svc.ChangePassword(ctx, c.AccountID, "0000", "better-secret"), domain.ErrUnauthenticated)
	assert.ErrorIs(t, svc.ChangePassword(ctx, c.AccountID, "1234", "abc"), domain.ErrValidation)
	require.NoError(t, svc.ChangePassword(ctx, c.AccountID, "1234", "better-secret"))

	res, err = svc.Login(ctx, "user_0900001234", "better-secret")
	require.NoError(t, err)
	assert.False(t, res.MustRotatePassword)
}

func TestRegisterCustomer(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	c, err := svc.RegisterCustomer(ctx, Registration{Password: "hunter22", FullName: " Lan ", Phone: "090 000 0001"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.AccountID)
	assert.Equal(t, "0900000001", c.Phone)
	assert.Equal(t, "user_0900000001", c.Username)
	assert.Equal(t, "Lan", c.FullName)
	assert.False(t, c.MustRotatePassword)
	assert.Zero(t, c.TotalOrders)
	assert.True(t, c.TotalSpent.IsZero())
	assert.Nil(t, c.LastOrderDate)

	stored, err := st.Customers().FindByPhone(ctx, "0900000001")
	require.NoError(t, err)
	assert.Equal(t, c.AccountID, stored.AccountID)

	res, err := svc.Login(ctx, "user_0900000001", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, res.Role)
	assert.False(t, res.MustRotatePassword)

	_, err = svc.RegisterCustomer(ctx, Registration{Username: "lan2", Password: "hunter22", FullName: "Lan", Phone: "0900000001"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.RegisterCustomer(ctx, Registration{Username: "user_0900000001", Password: "hunter22", FullName: "Lan", Phone: "0900000002"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	cases := map[string]Registration{
		"bad phone":      {Password: "hunter22", FullName: "Lan", Phone: "12ab"},
		"no name":        {Password: "hunter22", Phone: "0900000003"},
		"short password": {Password: "123", FullName: "Lan", Phone: "0900000003"},
		"long password":  {Password: strings.Repeat("p", 73), FullName: "Lan", Phone: "0900000003"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RegisterCustomer(ctx, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestChangePasswordRejectsLongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.CreateStaff(ctx, StaffInput{Username: "mai", Password: "hunter22"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, a.AccountID, "hunter22", strings.Repeat("p", 73))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, svc.ChangePassword(ctx, a.AccountID, "hunter22", strings.Repeat("p", 72)))
}
