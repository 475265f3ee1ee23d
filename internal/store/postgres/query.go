package postgres

import (
	"strconv"
	"strings"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

// query accumulates WHERE conditions with positional arguments.
type query struct {
	where []string
	args  []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) and(cond string) {
	q.where = append(q.where, cond)
}

func (q *query) clause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// likePattern escapes LIKE wildcards and wraps s for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func productListQuery(f store.ProductFilter) (string, []any) {
	q := &query{}
	if !f.IncludeInactive {
		q.and("is_active")
	}
	if f.Search != "" {
		p := q.arg(likePattern(f.Search))
		q.and("(title ILIKE " + p + " OR description ILIKE " + p + ")")
	}
	if f.Brand != "" {
		q.and("brand = " + q.arg(f.Brand))
	}
	if f.MinPrice != nil {
		q.and("price >= " + q.arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		q.and("price <= " + q.arg(*f.MaxPrice))
	}
	if f.RAM != "" {
		q.and("ram ILIKE " + q.arg(likePattern(f.RAM)))
	}
	if f.ROM != "" {
		q.and("rom ILIKE " + q.arg(likePattern(f.ROM)))
	}
	sql := "SELECT " + productColumns + " FROM products" + q.clause() +
		" ORDER BY " + productOrder(f.Sort) + " LIMIT " + q.arg(store.Limit(f.Limit))
	return sql, q.args
}

func productOrder(s store.ProductSort) string {
	switch s {
	case store.SortPriceAsc:
		return "price ASC, id"
	case store.SortPriceDesc:
		return "price DESC, id"
	case store.SortRating:
		return "rating DESC, id"
	case store.SortName:
		return "title ASC, id"
	default:
		return "created_at DESC, id"
	}
}

func orderListQuery(f store.OrderFilter) (string, []any) {
	q := &query{}
	if f.Status != "" {
		q.and("order_status = " + q.arg(string(f.Status)))
	}
	if f.Phone != "" {
		q.and("customer_phone = " + q.arg(f.Phone))
	}
	if f.OrderNumber != "" {
		q.and("order_number = " + q.arg(f.OrderNumber))
	}
	sql := "SELECT " + orderColumns + " FROM orders" + q.clause() +
		" ORDER BY created_at DESC, order_number DESC LIMIT " + q.arg(store.Limit(f.Limit))
	return sql, q.args
}

func customerListQuery(f store.CustomerFilter) (string, []any) {
	q := &query{}
	if f.Search != "" {
		p := q.arg(likePattern(f.Search))
		q.and("(c.full_name ILIKE " + p + " OR c.phone ILIKE " + p + " OR c.email ILIKE " + p + ")")
	}
	sql := customerSelect + q.clause() +
		" ORDER BY c.total_spent DESC, c.phone LIMIT " + q.arg(store.Limit(f.Limit))
	return sql, q.args
}

func staffListQuery(f store.AccountFilter) (string, []any) {
	q := &query{}
	if f.Role != "" {
		q.and("a.role = " + q.arg(string(f.Role)))
	}
	if f.Search != "" {
		p := q.arg(likePattern(f.Search))
		q.and("(a.username ILIKE " + p + " OR s.full_name ILIKE " + p + " OR s.email ILIKE " + p + ")")
	}
	sql := staffSelect + q.clause() +
		" ORDER BY a.created_at DESC, a.username LIMIT " + q.arg(store.Limit(f.Limit))
	return sql, q.args
}

// rangeCondition restricts created_at to r on q.
func rangeCondition(q *query, r domain.DateRange) {
	if r.Start != nil {
		q.and("created_at >= " + q.arg(*r.Start))
	}
	if r.End != nil {
		q.and("created_at <= " + q.arg(*r.End))
	}
}

// bucketFormat is the to_char pattern matching domain.Period.Layout.
func bucketFormat(p domain.Period) string {
	switch p {
	case domain.PeriodMonth:
		return "YYYY-MM"
	case domain.PeriodYear:
		return "YYYY"
	default:
		return "YYYY-MM-DD"
	}
}
