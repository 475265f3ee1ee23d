package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// Credentials is the authentication capability shared by every account
// variant. PasswordHash is never serialized.
type Credentials struct {
	AccountID          string    `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	MustRotatePassword bool      `json:"mustRotatePassword"`
	Active             bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Principal is implemented by every identity variant.
type Principal interface {
	PrincipalID() string
	Role() Role
	Creds() *Credentials
}

// CustomerStats are the lifetime aggregates maintained by the order workflow.
type CustomerStats struct {
	TotalOrders   int             `json:"totalOrders"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	LastOrderDate *time.Time      `json:"lastOrderDate,omitempty"`
}

// CustomerProfile is the contact data a customer or an order can change.
type CustomerProfile struct {
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Customer is a shopper. Phone is unique among customers.
type Customer struct {
	Credentials
	CustomerProfile
	Phone string `json:"phone"`
	CustomerStats
}

func (c *Customer) PrincipalID() string { return c.Credentials.AccountID }
func (c *Customer) Role() Role          { return RoleCustomer }
func (c *Customer) Creds() *Credentials { return &c.Credentials }

// StaffAccount is a back-office user. Admins are staff accounts with
// RoleAdmin.
type StaffAccount struct {
	Credentials
	AccountRole Role   `json:"role"`
	FullName    string `json:"fullName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
}

func (s *StaffAccount) PrincipalID() string { return s.Credentials.AccountID }
func (s *StaffAccount) Role() Role          { return s.AccountRole }
func (s *StaffAccount) Creds() *Credentials { return &s.Credentials }
func (s *StaffAccount) IsAdmin() bool       { return s.AccountRole == RoleAdmin }

// StatsDelta is applied atomically to a customer's aggregates.
type StatsDelta struct {
	Orders      int
	Spent       decimal.Decimal
	LastOrderAt *time.Time
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// NormalizePhone strips spaces, dots and dashes.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "")
	return r.Replace(strings.TrimSpace(phone))
}

func ValidatePhone(phone string) error {
	if phone == "" {
		return Validationf("phone is required")
	}
	if !phonePattern.MatchString(phone) {
		return Validationf("phone must be 8-15 digits")
	}
	return nil
}

// CustomerUsername derives the login of an auto-created customer. The phone
// is kept verbatim, so "+849..." and "849..." get distinct logins.
func CustomerUsername(phone string) string {
	return "user_" + phone
}

// InitialCustomerSecret is the weak default secret of an auto-created
// customer: the last four digits of the phone. Accounts created with it are
// always flagged for rotation.
func InitialCustomerSecret(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
