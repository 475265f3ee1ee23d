// Package account manages staff accounts and the credentials of every
// account variant, including customers created by the order workflow.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

const (
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes and rejects it outright.
	maxPasswordLen = 72
)

type Service struct {
	store  store.Store
	hasher Hasher
}

func NewService(st store.Store, h Hasher) *Service {
	return &Service{store: st, hasher: h}
}

type StaffInput struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	FullName string      `json:"fullName"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Address  string      `json:"address"`
}

// StaffUpdate is a partial update; nil fields are left unchanged.
type StaffUpdate struct {
	FullName *string      `json:"fullName"`
	Email    *string      `json:"email"`
	Phone    *string      `json:"phone"`
	Address  *string      `json:"address"`
	Role     *domain.Role `json:"role"`
	Active   *bool        `json:"isActive"`
}

// Registration is a customer signing up before their first order. Username
// defaults to the login an order would have created for the phone.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

type LoginResult struct {
	Account            domain.Principal `json:"account"`
	Role               domain.Role      `json:"role"`
	MustRotatePassword bool             `json:"mustRotatePassword"`
}

func validPassword(p string) error {
	if len(p) < minPasswordLen {
		return domain.Validationf("password must be at least %d characters", minPasswordLen)
	}
	if len(p) > maxPasswordLen {
		return domain.Validationf("password must be at most %d bytes", maxPasswordLen)
	}
	return nil
}

func staffRole(r domain.Role) (domain.Role, error) {
	switch r {
	case "":
		return domain.RoleStaff, nil
	case domain.RoleStaff, domain.RoleAdmin:
		return r, nil
	}
	return "", domain.Validationf("invalid staff role %q", r)
}

func (s *Service) CreateStaff(ctx context.Context, in StaffInput) (domain.StaffAccount, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return domain.StaffAccount{}, domain.Validationf("username is required")
	}
	if err := validPassword(in.Password); err != nil {
		return domain.StaffAccount{}, err
	}
	role, err := staffRole(in.Role)
	if err != nil {
		return domain.StaffAccount{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.StaffAccount{}, err
	}

	a := domain.StaffAccount{
		Credentials: domain.Credentials{Username: in.Username, PasswordHash: hash, Active: true},
		AccountRole: role,
		FullName:    strings.TrimSpace(in.FullName),
		Email:       strings.TrimSpace(in.Email),
		Phone:       domain.NormalizePhone(in.Phone),
		Address:     strings.TrimSpace(in.Address),
	}
	if err := s.store.Accounts().CreateStaff(ctx, &a); err != nil {
		return domain.StaffAccount{}, err
	}
	logging.Log(logging.Fields{
		Service: "account",
		Message: "staff account created",
		Extra:   map[string]any{"account_id": a.AccountID, "username": a.Username, "role": string(a.AccountRole)},
	})
	return a, nil
}

// RegisterCustomer creates a customer with a password of their choosing. A
// phone or username that is already taken is a Conflict.
func (s *Service) RegisterCustomer(ctx context.Context, in Registration) (domain.Customer, error) {
	in.Phone = domain.NormalizePhone(in.Phone)
	if err := domain.ValidatePhone(in.Phone); err != nil {
		return domain.Customer{}, err
	}
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" {
		return domain.Customer{}, domain.Validationf("full name is required")
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		in.Username = domain.CustomerUsername(in.Phone)
	}
	if err := validPassword(in.Password); err != nil {
		return domain.Customer{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.Customer{}, err
	}

	c := domain.Customer{
		Credentials: domain.Credentials{Username: in.Username, PasswordHash: hash, Active: true},
		CustomerProfile: domain.CustomerProfile{
			FullName: in.FullName,
			Email:    strings.TrimSpace(in.Email),
			Address:  strings.TrimSpace(in.Address),
		},
		Phone:         in.Phone,
		CustomerStats: domain.CustomerStats{TotalSpent: decimal.Zero},
	}
	if err := s.store.Customers().Create(ctx, &c); err != nil {
		return domain.Customer{}, err
	}
	logging.Log(logging.Fields{
		Service: "account",
		Message: "customer registered",
		Extra:   map[string]any{"account_id": c.AccountID, "username": c.Username},
	})
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.StaffAccount, error) {
	return s.store.Accounts().GetStaff(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.AccountFilter) ([]domain.StaffAccount, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, domain.Validationf("invalid role %q", f.Role)
	}
	return s.store.Accounts().ListStaff(ctx, f)
}

func (s *Service) Update(ctx context.Context, id string, u StaffUpdate) (domain.StaffAccount, error) {
	a, err := s.store.Accounts().GetStaff(ctx, id)
	if err != nil {
		return domain.StaffAccount{}, err
	}
	if u.FullName != nil {
		a.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Email != nil {
		a.Email = strings.TrimSpace(*u.Email)
	}
	if u.Phone != nil {
		a.Phone = domain.NormalizePhone(*u.Phone)
	}
	if u.Address != nil {
		a.Address = strings.TrimSpace(*u.Address)
	}
	if u.Role != nil {
		if a.AccountRole, err = staffRole(*u.Role); err != nil {
			return domain.StaffAccount{}, err
		}
	}
	if u.Active != nil {
		a.Active = *u.Active
	}
	if err := s.store.Accounts().UpdateStaff(ctx, &a); err != nil {
		return domain.StaffAccount{}, err
	}
	return a, nil
}

// ChangePassword verifies the old password and clears the rotation flag.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if err := validPassword(newPassword); err != nil {
		return err
	}
	p, err := s.store.Accounts().GetPrincipal(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(p.Creds().PasswordHash, oldPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Accounts().SetPassword(ctx, id, hash, false); err != nil {
		return err
	}
	logging.Log(logging.Fields{
		Service: "account",
		Message: "password changed",
		Extra:   map[string]any{"account_id": id, "role": string(p.Role())},
	})
	return nil
}

// Deactivate is a soft delete: the account stays but can no longer log in.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if _, err := s.store.Accounts().GetStaff(ctx, id); err != nil {
		return err
	}
	return s.store.Accounts().SetActive(ctx, id, false)
}

// Login verifies credentials of any account variant. Unknown and inactive
// accounts are NotFound; a wrong password is Unauthenticated.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, domain.Validationf("username and password are required")
	}
	p, err := s.store.Accounts().FindByUsername(ctx, username)
	if err != nil {
		return LoginResult{}, err
	}
	creds := p.Creds()
	if !creds.Active {
		return LoginResult{}, domain.NotFoundf("account %s not found", username)
	}
	if err := s.hasher.Compare(creds.PasswordHash, password); err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			logging.Warn(logging.Fields{
				Service: "account",
				Message: "login rejected",
				Extra:   map[string]any{"username": username},
			})
		}
		return LoginResult{}, err
	}
	return LoginResult{Account: p, Role: p.Role(), MustRotatePassword: creds.MustRotatePassword}, nil
}
