// Package store declares the persistence ports of the shop. Backends live in
// the postgres, mongo and memory subpackages and return domain errors
// (ErrNotFound, ErrConflict, *InsufficientStockError) instead of driver
// errors.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortRating    ProductSort = "rating"
	SortName      ProductSort = "name"
)

type ProductFilter struct {
	// Search matches title or description, case-insensitive.
	Search          string
	Brand           string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	RAM             string
	ROM             string
	IncludeInactive bool
	Sort            ProductSort
	Limit           int
}

type CustomerFilter struct {
	// Search matches full name, phone or email.
	Search string
	Limit  int
}

type AccountFilter struct {
	Search string
	Role   domain.Role
	Limit  int
}

type OrderFilter struct {
	Status      domain.OrderStatus
	Phone       string
	OrderNumber string
	Limit       int
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	// Update writes every field except stock and loads the stored stock
	// into p. Stock only moves through the atomic primitives below.
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	// LowStock lists products with 0 < stock <= threshold, lowest first.
	LowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error)
	// ReserveStock decrements stock by qty only if stock >= qty and returns
	// the remaining stock. A short product yields *domain.InsufficientStockError.
	ReserveStock(ctx context.Context, id string, qty int) (int, error)
	ReleaseStock(ctx context.Context, id string, qty int) error
	// AdjustStock adds delta to stock unless the result would be negative
	// and returns the new stock.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// CheckQuantity rejects reservations and releases of no units.
func CheckQuantity(qty int) error {
	if qty <= 0 {
		return domain.Validationf("stock quantity must be > 0, got %d", qty)
	}
	return nil
}

type CustomerRepository interface {
	Get(ctx context.Context, id string) (domain.Customer, error)
	FindByPhone(ctx context.Context, phone string) (domain.Customer, error)
	// List orders customers by total spent, highest first.
	List(ctx context.Context, f CustomerFilter) ([]domain.Customer, error)
	// Create fails with ErrConflict when the phone or username is taken.
	Create(ctx context.Context, c *domain.Customer) error
	UpdateProfile(ctx context.Context, id string, p domain.CustomerProfile) (domain.Customer, error)
	// AdjustStats adds d to the customer's aggregates in one atomic update.
	AdjustStats(ctx context.Context, id string, d domain.StatsDelta) (domain.Customer, error)
	Delete(ctx context.Context, id string) error
}

// AccountRepository covers staff accounts and the credentials of every
// account variant.
type AccountRepository interface {
	CreateStaff(ctx context.Context, a *domain.StaffAccount) error
	GetStaff(ctx context.Context, id string) (domain.StaffAccount, error)
	ListStaff(ctx context.Context, f AccountFilter) ([]domain.StaffAccount, error)
	UpdateStaff(ctx context.Context, a *domain.StaffAccount) error
	// FindByUsername returns a *domain.Customer or a *domain.StaffAccount.
	FindByUsername(ctx context.Context, username string) (domain.Principal, error)
	GetPrincipal(ctx context.Context, id string) (domain.Principal, error)
	SetPassword(ctx context.Context, id, hash string, mustRotate bool) error
	SetActive(ctx context.Context, id string, active bool) error
}

type OrderRepository interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	// Insert fails with ErrConflict on a duplicate order number or
	// idempotency key.
	Insert(ctx context.Context, o *domain.Order) error
	// Delete removes an order that a failed saga inserted. API operations
	// never delete orders.
	Delete(ctx context.Context, id string) error
	// List returns orders newest first.
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	CountByPhone(ctx context.Context, phone string) (int, error)
	// UpdateStatus applies the change only while the order status is still
	// from; otherwise it fails with ErrInvalidTransition. Empty to or payment
	// leave that field unchanged.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, payment domain.PaymentStatus) (domain.Order, error)
	ListMissingImages(ctx context.Context) ([]domain.Order, error)
	UpdateItems(ctx context.Context, id string, items []domain.OrderItem) error
}

type SequenceRepository interface {
	// Next atomically increments and returns the counter of day.
	Next(ctx context.Context, day string) (int, error)
}

type OutboxRepository interface {
	outbox.Store
	Insert(ctx context.Context, rec outbox.Record) error
}

type ReportRepository interface {
	OrderStats(ctx context.Context, r domain.DateRange) (domain.OrderStats, error)
	BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error)
	// RevenueByPeriod buckets orders by their creation date in loc.
	RevenueByPeriod(ctx context.Context, p domain.Period, r domain.DateRange, loc *time.Location) ([]domain.RevenueBucket, error)
	CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error)
}

// UnitOfWork is the set of repositories bound to one transaction, or to no
// transaction at all when obtained from the Store directly.
type UnitOfWork interface {
	Products() ProductRepository
	Customers() CustomerRepository
	Accounts() AccountRepository
	Orders() OrderRepository
	Sequences() SequenceRepository
	Outbox() OutboxRepository
}

type Store interface {
	UnitOfWork
	Reports() ReportRepository
	TxLog() coordinator.TxLogStore
	// InTx runs fn in one transaction, committed when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const DefaultLimit = 50

// Limit clamps a requested page size.
func Limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > 500 {
		return 500
	}
	return n
}
