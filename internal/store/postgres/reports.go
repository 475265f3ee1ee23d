package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

type reportRepo struct{ q querier }

func (r reportRepo) OrderStats(ctx context.Context, rng domain.DateRange) (domain.OrderStats, error) {
	q := &query{}
	rangeCondition(q, rng)
	sql := `SELECT count(*),
		COALESCE(sum(final_amount), 0)::text,
		COALESCE(sum(final_amount) FILTER (WHERE order_status <> 'cancelled'), 0)::text,
		count(*) FILTER (WHERE order_status = 'pending'),
		count(*) FILTER (WHERE order_status = 'confirmed'),
		count(*) FILTER (WHERE order_status = 'shipping'),
		count(*) FILTER (WHERE order_status = 'delivered'),
		count(*) FILTER (WHERE order_status = 'cancelled')
		FROM orders` + q.clause()

	var s domain.OrderStats
	var revenue, net string
	err := r.q.QueryRow(ctx, sql, q.args...).Scan(
		&s.TotalOrders, &revenue, &net,
		&s.PendingOrders, &s.ConfirmedOrders, &s.ShippingOrders, &s.CompletedOrders, &s.CancelledOrders,
	)
	if err != nil {
		return s, mapErr(err, "order stats")
	}
	if s.TotalRevenue, err = parseDecimal(revenue); err != nil {
		return s, err
	}
	if s.NetRevenue, err = parseDecimal(net); err != nil {
		return s, err
	}
	s.AverageOrderValue = domain.Average(s.TotalRevenue, s.TotalOrders)
	return s, nil
}

func (r reportRepo) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	rows, err := r.q.Query(ctx, `SELECT it->>'productId' AS product_id,
		(array_agg(it->>'productName' ORDER BY o.created_at DESC))[1],
		COALESCE(p.thumbnail, ''),
		sum((it->>'quantity')::int),
		sum((it->>'subtotal')::numeric)::text
		FROM orders o
		CROSS JOIN LATERAL jsonb_array_elements(o.items) it
		LEFT JOIN products p ON p.id = it->>'productId'
		WHERE o.order_status <> 'cancelled'
		GROUP BY it->>'productId', p.thumbnail
		ORDER BY 4 DESC, 1 ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err, "best selling")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BestSeller, error) {
		var b domain.BestSeller
		var revenue string
		if err := row.Scan(&b.ProductID, &b.Name, &b.Image, &b.TotalQuantity, &revenue); err != nil {
			return b, err
		}
		var err error
		b.TotalRevenue, err = parseDecimal(revenue)
		return b, err
	})
	return out, mapErr(err, "best selling")
}

func (r reportRepo) RevenueByPeriod(ctx context.Context, p domain.Period, rng domain.DateRange, loc *time.Location) ([]domain.RevenueBucket, error) {
	q := &query{}
	tz := q.arg(zoneName(loc))
	format := q.arg(bucketFormat(p))
	q.and("order_status <> 'cancelled'")
	rangeCondition(q, rng)
	sql := `SELECT to_char(created_at AT TIME ZONE ` + tz + `, ` + format + `) AS bucket,
		sum(final_amount)::text, count(*)
		FROM orders` + q.clause() + `
		GROUP BY bucket ORDER BY bucket DESC`

	rows, err := r.q.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, mapErr(err, "revenue by period")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RevenueBucket, error) {
		var b domain.RevenueBucket
		var revenue string
		if err := row.Scan(&b.Bucket, &revenue, &b.TotalOrders); err != nil {
			return b, err
		}
		var err error
		b.TotalRevenue, err = parseDecimal(revenue)
		return b, err
	})
	return out, mapErr(err, "revenue by period")
}

// zoneName returns an IANA name Postgres understands.
func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}

const perCustomer = `WITH per AS (
	SELECT customer_phone,
		(array_agg(customer_name ORDER BY created_at DESC))[1] AS full_name,
		count(*) AS orders,
		sum(final_amount) AS spent,
		COALESCE(sum(final_amount) FILTER (WHERE order_status <> 'cancelled'), 0) AS net
	FROM orders
	GROUP BY customer_phone)
`

func (r reportRepo) CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error) {
	var rep domain.CustomerStatsReport
	var revenue, net string
	err := r.q.QueryRow(ctx, perCustomer+`SELECT count(*), COALESCE(sum(orders), 0)::bigint,
		COALESCE(sum(spent), 0)::text, COALESCE(sum(net), 0)::text FROM per`).
		Scan(&rep.Overview.TotalCustomers, &rep.Overview.TotalOrders, &revenue, &net)
	if err != nil {
		return rep, mapErr(err, "customer stats")
	}
	if rep.Overview.TotalRevenue, err = parseDecimal(revenue); err != nil {
		return rep, err
	}
	if rep.Overview.NetRevenue, err = parseDecimal(net); err != nil {
		return rep, err
	}
	rep.Overview.AvgOrderValue = domain.Average(rep.Overview.TotalRevenue, rep.Overview.TotalOrders)
	if rep.Overview.TotalCustomers > 0 {
		rep.Overview.AvgOrdersPerCustomer = float64(rep.Overview.TotalOrders) / float64(rep.Overview.TotalCustomers)
	}

	rows, err := r.q.Query(ctx, perCustomer+`SELECT full_name, customer_phone, orders, spent::text
		FROM per ORDER BY spent DESC, customer_phone LIMIT $1`, top)
	if err != nil {
		return rep, mapErr(err, "top customers")
	}
	rep.TopCustomers, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TopCustomer, error) {
		var c domain.TopCustomer
		var spent string
		if err := row.Scan(&c.FullName, &c.Phone, &c.TotalOrders, &spent); err != nil {
			return c, err
		}
		var err error
		c.TotalSpent, err = parseDecimal(spent)
		return c, err
	})
	return rep, mapErr(err, "top customers")
}
