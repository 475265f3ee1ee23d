package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

type reportRepo struct{ u *uow }

func (r reportRepo) orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := r.u.read(ctx, func(st *state) error {
		out = make([]domain.Order, 0, len(st.orders))
		for _, o := range st.orders {
			out = append(out, o)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r reportRepo) OrderStats(ctx context.Context, rng domain.DateRange) (domain.OrderStats, error) {
	orders, err := r.orders(ctx)
	if err != nil {
		return domain.OrderStats{}, err
	}
	stats := domain.OrderStats{TotalRevenue: decimal.Zero, NetRevenue: decimal.Zero}
	for _, o := range orders {
		if !rng.Contains(o.CreatedAt) {
			continue
		}
		stats.TotalOrders++
		switch o.OrderStatus {
		case domain.OrderStatusPending:
			stats.PendingOrders++
		case domain.OrderStatusConfirmed:
			stats.ConfirmedOrders++
		case domain.OrderStatusShipping:
			stats.ShippingOrders++
		case domain.OrderStatusDelivered:
			stats.CompletedOrders++
		case domain.OrderStatusCancelled:
			stats.CancelledOrders++
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(o.FinalAmount)
		if o.OrderStatus != domain.OrderStatusCancelled {
			stats.NetRevenue = stats.NetRevenue.Add(o.FinalAmount)
		}
	}
	stats.AverageOrderValue = domain.Average(stats.TotalRevenue, stats.TotalOrders)
	return stats, nil
}

func (r reportRepo) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	orders, err := r.orders(ctx)
	if err != nil {
		return nil, err
	}
	byID := map[string]*domain.BestSeller{}
	for _, o := range orders {
		if o.OrderStatus == domain.OrderStatusCancelled {
			continue
		}
		for _, it := range o.Items {
			b, ok := byID[it.ProductID]
			if !ok {
				b = &domain.BestSeller{ProductID: it.ProductID, TotalRevenue: decimal.Zero}
				byID[it.ProductID] = b
			}
			// orders are oldest first, so the latest snapshot name wins
			b.Name = it.ProductName
			b.TotalQuantity += it.Quantity
			b.TotalRevenue = b.TotalRevenue.Add(it.Subtotal)
		}
	}

	out := make([]domain.BestSeller, 0, len(byID))
	err = r.u.read(ctx, func(st *state) error {
		for id, b := range byID {
			if p, ok := st.products[id]; ok {
				b.Image = p.Thumbnail
			}
			out = append(out, *b)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalQuantity == out[j].TotalQuantity {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].TotalQuantity > out[j].TotalQuantity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r reportRepo) RevenueByPeriod(ctx context.Context, p domain.Period, rng domain.DateRange, loc *time.Location) ([]domain.RevenueBucket, error) {
	orders, err := r.orders(ctx)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	buckets := map[string]*domain.RevenueBucket{}
	for _, o := range orders {
		if o.OrderStatus == domain.OrderStatusCancelled || !rng.Contains(o.CreatedAt) {
			continue
		}
		key := o.CreatedAt.In(loc).Format(p.Layout())
		b, ok := buckets[key]
		if !ok {
			b = &domain.RevenueBucket{Bucket: key, TotalRevenue: decimal.Zero}
			buckets[key] = b
		}
		b.TotalRevenue = b.TotalRevenue.Add(o.FinalAmount)
		b.TotalOrders++
	}
	out := make([]domain.RevenueBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket > out[j].Bucket })
	return out, nil
}

func (r reportRepo) CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error) {
	orders, err := r.orders(ctx)
	if err != nil {
		return domain.CustomerStatsReport{}, err
	}
	overview := domain.CustomerOverview{TotalRevenue: decimal.Zero, NetRevenue: decimal.Zero}
	byPhone := map[string]*domain.TopCustomer{}
	for _, o := range orders {
		overview.TotalOrders++
		overview.TotalRevenue = overview.TotalRevenue.Add(o.FinalAmount)
		if o.OrderStatus != domain.OrderStatusCancelled {
			overview.NetRevenue = overview.NetRevenue.Add(o.FinalAmount)
		}

		c, ok := byPhone[o.Customer.Phone]
		if !ok {
			c = &domain.TopCustomer{Phone: o.Customer.Phone, TotalSpent: decimal.Zero}
			byPhone[o.Customer.Phone] = c
		}
		c.FullName = o.Customer.Name
		c.TotalOrders++
		c.TotalSpent = c.TotalSpent.Add(o.FinalAmount)
	}
	overview.TotalCustomers = len(byPhone)
	overview.AvgOrderValue = domain.Average(overview.TotalRevenue, overview.TotalOrders)
	if overview.TotalCustomers > 0 {
		overview.AvgOrdersPerCustomer = float64(overview.TotalOrders) / float64(overview.TotalCustomers)
	}

	tops := make([]domain.TopCustomer, 0, len(byPhone))
	for _, c := range byPhone {
		tops = append(tops, *c)
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].TotalSpent.Equal(tops[j].TotalSpent) {
			return tops[i].Phone < tops[j].Phone
		}
		return tops[i].TotalSpent.GreaterThan(tops[j].TotalSpent)
	})
	if top > 0 && len(tops) > top {
		tops = tops[:top]
	}
	return domain.CustomerStatsReport{Overview: overview, TopCustomers: tops}, nil
}
