package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

type reportRepo struct{ db *mongo.Database }

// aggregate runs pipeline on the orders collection. Numeric fields are
// decoded into any because $sum changes type with its inputs.
func aggregate[T any](ctx context.Context, db *mongo.Database, pipeline mongo.Pipeline) ([]T, error) {
	cur, err := db.Collection(colOrders).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var out []T
	err = cur.All(ctx, &out)
	return out, err
}

type orderStatsRow struct {
	TotalOrders     any `bson:"totalOrders"`
	TotalRevenue    any `bson:"totalRevenue"`
	NetRevenue      any `bson:"netRevenue"`
	PendingOrders   any `bson:"pendingOrders"`
	ConfirmedOrders any `bson:"confirmedOrders"`
	ShippingOrders  any `bson:"shippingOrders"`
	CompletedOrders any `bson:"completedOrders"`
	CancelledOrders any `bson:"cancelledOrders"`
}

func (r reportRepo) OrderStats(ctx context.Context, rng domain.DateRange) (domain.OrderStats, error) {
	rows, err := aggregate[orderStatsRow](ctx, r.db, orderStatsPipeline(rng))
	if err != nil {
		return domain.OrderStats{}, mapErr(err, "order stats")
	}
	if len(rows) == 0 {
		return domain.OrderStats{}, nil
	}
	row := rows[0]
	s := domain.OrderStats{
		TotalOrders:     anyInt(row.TotalOrders),
		TotalRevenue:    anyDecimal(row.TotalRevenue),
		NetRevenue:      anyDecimal(row.NetRevenue),
		PendingOrders:   anyInt(row.PendingOrders),
		ConfirmedOrders: anyInt(row.ConfirmedOrders),
		ShippingOrders:  anyInt(row.ShippingOrders),
		CompletedOrders: anyInt(row.CompletedOrders),
		CancelledOrders: anyInt(row.CancelledOrders),
	}
	s.AverageOrderValue = domain.Average(s.TotalRevenue, s.TotalOrders)
	return s, nil
}

type bestSellerRow struct {
	ProductID     string `bson:"_id"`
	Name          string `bson:"name"`
	Image         string `bson:"image"`
	TotalQuantity any    `bson:"totalQuantity"`
	TotalRevenue  any    `bson:"totalRevenue"`
}

func (r reportRepo) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	rows, err := aggregate[bestSellerRow](ctx, r.db, bestSellingPipeline(limit))
	if err != nil {
		return nil, mapErr(err, "best selling")
	}
	out := make([]domain.BestSeller, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BestSeller{
			ProductID:     row.ProductID,
			Name:          row.Name,
			Image:         row.Image,
			TotalQuantity: anyInt(row.TotalQuantity),
			TotalRevenue:  anyDecimal(row.TotalRevenue),
		})
	}
	return out, nil
}

type revenueRow struct {
	Bucket       string `bson:"_id"`
	TotalRevenue any    `bson:"totalRevenue"`
	TotalOrders  any    `bson:"totalOrders"`
}

func (r reportRepo) RevenueByPeriod(ctx context.Context, p domain.Period, rng domain.DateRange, loc *time.Location) ([]domain.RevenueBucket, error) {
	tz := "UTC"
	if loc != nil && loc.String() != "Local" {
		tz = loc.String()
	}
	rows, err := aggregate[revenueRow](ctx, r.db, revenuePipeline(p, rng, tz))
	if err != nil {
		return nil, mapErr(err, "revenue by period")
	}
	out := make([]domain.RevenueBucket, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.RevenueBucket{
			Bucket:       row.Bucket,
			TotalRevenue: anyDecimal(row.TotalRevenue),
			TotalOrders:  anyInt(row.TotalOrders),
		})
	}
	return out, nil
}

type customerRow struct {
	Phone       string `bson:"_id"`
	FullName    string `bson:"fullName"`
	TotalOrders any    `bson:"totalOrders"`
	TotalSpent  any    `bson:"totalSpent"`
}

type customerFacet struct {
	Overview []struct {
		TotalCustomers any `bson:"totalCustomers"`
		TotalOrders    any `bson:"totalOrders"`
		TotalRevenue   any `bson:"totalRevenue"`
		NetRevenue     any `bson:"netRevenue"`
	} `bson:"overview"`
	Top []customerRow `bson:"top"`
}

func (r reportRepo) CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error) {
	rep := domain.CustomerStatsReport{TopCustomers: []domain.TopCustomer{}}
	rows, err := aggregate[customerFacet](ctx, r.db, customerStatsPipeline(top))
	if err != nil {
		return rep, mapErr(err, "customer stats")
	}
	if len(rows) == 0 {
		return rep, nil
	}
	facet := rows[0]
	if len(facet.Overview) > 0 {
		ov := facet.Overview[0]
		rep.Overview.TotalCustomers = anyInt(ov.TotalCustomers)
		rep.Overview.TotalOrders = anyInt(ov.TotalOrders)
		rep.Overview.TotalRevenue = anyDecimal(ov.TotalRevenue)
		rep.Overview.NetRevenue = anyDecimal(ov.NetRevenue)
	}
	rep.Overview.AvgOrderValue = domain.Average(rep.Overview.TotalRevenue, rep.Overview.TotalOrders)
	if rep.Overview.TotalCustomers > 0 {
		rep.Overview.AvgOrdersPerCustomer = float64(rep.Overview.TotalOrders) / float64(rep.Overview.TotalCustomers)
	}
	for _, c := range facet.Top {
		rep.TopCustomers = append(rep.TopCustomers, domain.TopCustomer{
			FullName:    c.FullName,
			Phone:       c.Phone,
			TotalOrders: anyInt(c.TotalOrders),
			TotalSpent:  anyDecimal(c.TotalSpent),
		})
	}
	return rep, nil
}
