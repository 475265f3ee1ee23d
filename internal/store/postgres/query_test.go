package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

func TestProductListQuery(t *testing.T) {
	floor := decimal.NewFromInt(100)
	sql, args := productListQuery(store.ProductFilter{
		Search:   "pro_max",
		Brand:    "Apple",
		MinPrice: &floor,
		RAM:      "8GB",
		Sort:     store.SortPriceDesc,
		Limit:    20,
	})

	assert.Contains(t, sql, "WHERE is_active AND (title ILIKE $1 OR description ILIKE $1) AND brand = $2 AND price >= $3 AND ram ILIKE $4")
	assert.Contains(t, sql, "ORDER BY price DESC, id LIMIT $5")
	assert.Equal(t, []any{`%pro\_max%`, "Apple", floor, "%8GB%", 20}, args)
}

func TestProductListQueryDefaults(t *testing.T) {
	sql, args := productListQuery(store.ProductFilter{IncludeInactive: true})
	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql, "ORDER BY created_at DESC, id LIMIT $1")
	assert.Equal(t, []any{store.DefaultLimit}, args)
}

func TestOrderListQuery(t *testing.T) {
	sql, args := orderListQuery(store.OrderFilter{Status: domain.OrderStatusPending, Phone: "0900000000"})
	assert.Contains(t, sql, "WHERE order_status = $1 AND customer_phone = $2")
	assert.Contains(t, sql, "LIMIT $3")
	assert.Equal(t, []any{"pending", "0900000000", store.DefaultLimit}, args)
}

func TestStaffListQuery(t *testing.T) {
	sql, args := staffListQuery(store.AccountFilter{Role: domain.RoleAdmin, Search: "an"})
	assert.Contains(t, sql, "a.role = $1 AND (a.username ILIKE $2")
	assert.Equal(t, []any{"admin", "%an%", store.DefaultLimit}, args)
}

func TestRangeCondition(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &query{}
	q.and("order_status <> 'cancelled'")
	rangeCondition(q, domain.DateRange{Start: &start})
	assert.Equal(t, " WHERE order_status <> 'cancelled' AND created_at >= $1", q.clause())
	assert.Len(t, q.args, 1)
}

func TestBucketFormat(t *testing.T) {
	assert.Equal(t, "YYYY-MM-DD", bucketFormat(domain.PeriodDay))
	assert.Equal(t, "YYYY-MM", bucketFormat(domain.PeriodMonth))
	assert.Equal(t, "YYYY", bucketFormat(domain.PeriodYear))
}

func TestZoneName(t *testing.T) {
	assert.Equal(t, "UTC", zoneName(nil))
	assert.Equal(t, "UTC", zoneName(time.Local))
	loc := time.FixedZone("ICT", 7*3600)
	assert.Equal(t, "ICT", zoneName(loc))
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%50\%%`, likePattern("50%"))
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil, "product"))
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows, "product p1"), domain.ErrNotFound)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}, "product"), domain.ErrConflict)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "40P01"}, "reserve stock"), domain.ErrConflict)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "40001"}, "commit"), domain.ErrConflict)

	other := mapErr(errors.New("boom"), "product")
	assert.Equal(t, domain.KindInternal, domain.KindOf(other))
}
