package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

func keys(d bson.D) []string {
	out := make([]string, 0, len(d))
	for _, e := range d {
		out = append(out, e.Key)
	}
	return out
}

func TestProductFilter(t *testing.T) {
	floor := decimal.NewFromInt(100)
	f := productFilter(store.ProductFilter{Search: "pro+", Brand: "Apple", MinPrice: &floor, RAM: "8GB"})

	assert.Equal(t, []string{"isActive", "$or", "brand", "price", "ram"}, keys(f))
	or := f[1].Value.(bson.A)
	require.Len(t, or, 2)
	assert.Equal(t, primitive.Regex{Pattern: `pro\+`, Options: "i"}, or[0].(bson.D)[0].Value)

	price := f[3].Value.(bson.D)
	require.Len(t, price, 1)
	assert.Equal(t, "$gte", price[0].Key)
	assert.Equal(t, toD128(floor), price[0].Value)
}

func TestProductFilterIncludeInactive(t *testing.T) {
	assert.Empty(t, productFilter(store.ProductFilter{IncludeInactive: true}))
}

func TestProductSort(t *testing.T) {
	assert.Equal(t, "createdAt", productSort("")[0].Key)
	assert.Equal(t, bson.E{Key: "price", Value: -1}, productSort(store.SortPriceDesc)[0])
	assert.Equal(t, bson.E{Key: "title", Value: 1}, productSort(store.SortName)[0])
}

func TestOrderFilter(t *testing.T) {
	f := orderFilter(store.OrderFilter{Status: domain.OrderStatusShipping, Phone: "0900000000"})
	assert.Equal(t, bson.D{
		{Key: "orderStatus", Value: "shipping"},
		{Key: "customer.phone", Value: "0900000000"},
	}, f)
}

func TestRangeFilter(t *testing.T) {
	assert.Empty(t, rangeFilter(domain.DateRange{}))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := rangeFilter(domain.DateRange{Start: &start})
	assert.Equal(t, bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: start}}}}, f)
}

func TestRevenuePipeline(t *testing.T) {
	p := revenuePipeline(domain.PeriodMonth, domain.DateRange{}, "Asia/Ho_Chi_Minh")
	require.Len(t, p, 3)

	match := p[0][0].Value.(bson.D)
	assert.Equal(t, notCancelled, match[0])

	group := p[1][0].Value.(bson.D)
	dateToString := group[0].Value.(bson.D)[0].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "format", Value: "%Y-%m"}, dateToString[0])
	assert.Equal(t, bson.E{Key: "timezone", Value: "Asia/Ho_Chi_Minh"}, dateToString[2])

	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}}, p[2])
}

func TestDateFormatMatchesLayout(t *testing.T) {
	at := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	cases := map[domain.Period]string{
		domain.PeriodDay:   "2024-03-07",
		domain.PeriodMonth: "2024-03",
		domain.PeriodYear:  "2024",
	}
	for p, want := range cases {
		assert.Equal(t, want, at.Format(p.Layout()), p)
		assert.NotEmpty(t, dateFormat(p))
	}
}

func TestBestSellingPipelineClampsLimit(t *testing.T) {
	p := bestSellingPipeline(0)
	last := p[len(p)-1]
	assert.Equal(t, bson.E{Key: "$limit", Value: store.DefaultLimit}, last[0])
}

func TestCustomerStatsPipelineFacets(t *testing.T) {
	p := customerStatsPipeline(5)
	facet := p[len(p)-1][0]
	assert.Equal(t, "$facet", facet.Key)
	assert.Equal(t, []string{"overview", "top"}, keys(facet.Value.(bson.D)))

	// every order counts toward totals; cancelled ones only drop out of netSpent
	assert.Equal(t, "$sort", p[0][0].Key)
	group := p[1][0].Value.(bson.D)
	assert.Equal(t, []string{"_id", "fullName", "totalOrders", "totalSpent", "netSpent"}, keys(group))
}

func TestOrderStatsPipelineRevenue(t *testing.T) {
	p := orderStatsPipeline(domain.DateRange{})
	require.Len(t, p, 2)
	group := p[1][0].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$finalAmount"}}}, group[2])
	assert.Equal(t, bson.E{Key: "netRevenue", Value: liveAmount()}, group[3])
}
