package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateRange bounds a report by order creation time. Both ends are inclusive;
// nil means unbounded.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodMonth || p == PeriodYear
}

// Layout is the time layout of a bucket key for the period.
func (p Period) Layout() string {
	switch p {
	case PeriodMonth:
		return "2006-01"
	case PeriodYear:
		return "2006"
	default:
		return "2006-01-02"
	}
}

// OrderStats sums finalAmount over every order in range into TotalRevenue;
// NetRevenue leaves cancelled orders out.
type OrderStats struct {
	TotalOrders       int             `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	NetRevenue        decimal.Decimal `json:"netRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	PendingOrders     int             `json:"pendingOrders"`
	ConfirmedOrders   int             `json:"confirmedOrders"`
	ShippingOrders    int             `json:"shippingOrders"`
	CompletedOrders   int             `json:"completedOrders"`
	CancelledOrders   int             `json:"cancelledOrders"`
}

type BestSeller struct {
	ProductID     string          `json:"productId"`
	Name          string          `json:"name"`
	Image         string          `json:"image,omitempty"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

type RevenueBucket struct {
	Bucket       string          `json:"bucket"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalOrders  int             `json:"totalOrders"`
}

type CustomerOverview struct {
	TotalCustomers       int             `json:"totalCustomers"`
	TotalOrders          int             `json:"totalOrders"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	NetRevenue           decimal.Decimal `json:"netRevenue"`
	AvgOrderValue        decimal.Decimal `json:"avgOrderValue"`
	AvgOrdersPerCustomer float64         `json:"avgOrdersPerCustomer"`
}

type TopCustomer struct {
	FullName    string          `json:"fullName"`
	Phone       string          `json:"phone"`
	TotalOrders int             `json:"totalOrders"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
}

type CustomerStatsReport struct {
	Overview     CustomerOverview `json:"overview"`
	TopCustomers []TopCustomer    `json:"topCustomers"`
}

// Average divides revenue by count, zero when count is zero.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}
