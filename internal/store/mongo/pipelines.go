package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

var notCancelled = bson.E{Key: "orderStatus", Value: bson.D{{Key: "$ne", Value: string(domain.OrderStatusCancelled)}}}

func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func productFilter(f store.ProductFilter) bson.D {
	filter := bson.D{}
	if !f.IncludeInactive {
		filter = append(filter, bson.E{Key: "isActive", Value: true})
	}
	if f.Search != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: contains(f.Search)}},
			bson.D{{Key: "description", Value: contains(f.Search)}},
		}})
	}
	if f.Brand != "" {
		filter = append(filter, bson.E{Key: "brand", Value: f.Brand})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.D{}
		if f.MinPrice != nil {
			price = append(price, bson.E{Key: "$gte", Value: toD128(*f.MinPrice)})
		}
		if f.MaxPrice != nil {
			price = append(price, bson.E{Key: "$lte", Value: toD128(*f.MaxPrice)})
		}
		filter = append(filter, bson.E{Key: "price", Value: price})
	}
	if f.RAM != "" {
		filter = append(filter, bson.E{Key: "ram", Value: contains(f.RAM)})
	}
	if f.ROM != "" {
		filter = append(filter, bson.E{Key: "rom", Value: contains(f.ROM)})
	}
	return filter
}

func productSort(s store.ProductSort) bson.D {
	switch s {
	case store.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case store.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case store.SortRating:
		return bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: 1}}
	case store.SortName:
		return bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	}
}

func orderFilter(f store.OrderFilter) bson.D {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "orderStatus", Value: string(f.Status)})
	}
	if f.Phone != "" {
		filter = append(filter, bson.E{Key: "customer.phone", Value: f.Phone})
	}
	if f.OrderNumber != "" {
		filter = append(filter, bson.E{Key: "orderNumber", Value: f.OrderNumber})
	}
	return filter
}

func rangeFilter(r domain.DateRange) bson.D {
	created := bson.D{}
	if r.Start != nil {
		created = append(created, bson.E{Key: "$gte", Value: *r.Start})
	}
	if r.End != nil {
		created = append(created, bson.E{Key: "$lte", Value: *r.End})
	}
	if len(created) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "createdAt", Value: created}}
}

func countIf(status domain.OrderStatus) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$orderStatus", string(status)}}}, 1, 0,
	}}}}}
}

func isLive() bson.D {
	return bson.D{{Key: "$ne", Value: bson.A{"$orderStatus", string(domain.OrderStatusCancelled)}}}
}

func liveAmount() bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{isLive(), "$finalAmount", 0}}}}}
}

func orderStatsPipeline(r domain.DateRange) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: rangeFilter(r)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalOrders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$finalAmount"}}},
			{Key: "netRevenue", Value: liveAmount()},
			{Key: "pendingOrders", Value: countIf(domain.OrderStatusPending)},
			{Key: "confirmedOrders", Value: countIf(domain.OrderStatusConfirmed)},
			{Key: "shippingOrders", Value: countIf(domain.OrderStatusShipping)},
			{Key: "completedOrders", Value: countIf(domain.OrderStatusDelivered)},
			{Key: "cancelledOrders", Value: countIf(domain.OrderStatusCancelled)},
		}}},
	}
}

func bestSellingPipeline(limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{notCancelled}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.productId"},
			{Key: "name", Value: bson.D{{Key: "$last", Value: "$items.productName"}}},
			{Key: "totalQuantity", Value: bson.D{{Key: "$sum", Value: "$items.quantity"}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$items.subtotal"}}},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colProducts},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
		{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$product"}, {Key: "preserveNullAndEmptyArrays", Value: true}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "name", Value: 1},
			{Key: "totalQuantity", Value: 1},
			{Key: "totalRevenue", Value: 1},
			{Key: "image", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$product.thumbnail", ""}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalQuantity", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: store.Limit(limit)}},
	}
}

// dateFormat is the $dateToString format matching domain.Period.Layout.
func dateFormat(p domain.Period) string {
	switch p {
	case domain.PeriodMonth:
		return "%Y-%m"
	case domain.PeriodYear:
		return "%Y"
	default:
		return "%Y-%m-%d"
	}
}

func revenuePipeline(p domain.Period, r domain.DateRange, tz string) mongo.Pipeline {
	match := append(bson.D{notCancelled}, rangeFilter(r)...)
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: dateFormat(p)},
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: tz},
			}}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$finalAmount"}}},
			{Key: "totalOrders", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
	}
}

func customerStatsPipeline(top int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$customer.phone"},
			{Key: "fullName", Value: bson.D{{Key: "$last", Value: "$customer.name"}}},
			{Key: "totalOrders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalSpent", Value: bson.D{{Key: "$sum", Value: "$finalAmount"}}},
			{Key: "netSpent", Value: liveAmount()},
		}}},
		{{Key: "$facet", Value: bson.D{
			{Key: "overview", Value: bson.A{
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "totalCustomers", Value: bson.D{{Key: "$sum", Value: 1}}},
					{Key: "totalOrders", Value: bson.D{{Key: "$sum", Value: "$totalOrders"}}},
					{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$totalSpent"}}},
					{Key: "netRevenue", Value: bson.D{{Key: "$sum", Value: "$netSpent"}}},
				}}},
			}},
			{Key: "top", Value: bson.A{
				bson.D{{Key: "$sort", Value: bson.D{{Key: "totalSpent", Value: -1}, {Key: "_id", Value: 1}}}},
				bson.D{{Key: "$limit", Value: store.Limit(top)}},
			}},
		}}},
	}
}
