package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentMomo         PaymentMethod = "momo"
	PaymentVNPay        PaymentMethod = "vnpay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentCreditCard, PaymentMomo, PaymentVNPay:
		return true
	}
	return false
}

// CustomerSnapshot is the contact data copied into an order at creation. It
// is never updated from the live customer record.
type CustomerSnapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
}

// OrderItem is an order line with product data captured at order time.
type OrderItem struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID             string           `json:"id"`
	OrderNumber    string           `json:"orderNumber"`
	CustomerID     string           `json:"userId"`
	Customer       CustomerSnapshot `json:"customer"`
	Items          []OrderItem      `json:"items"`
	TotalAmount    decimal.Decimal  `json:"totalAmount"`
	Discount       decimal.Decimal  `json:"discount"`
	FinalAmount    decimal.Decimal  `json:"finalAmount"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	PaymentStatus  PaymentStatus    `json:"paymentStatus"`
	OrderStatus    OrderStatus      `json:"orderStatus"`
	Note           string           `json:"note,omitempty"`
	CreatedBy      string           `json:"createdBy,omitempty"`
	IdempotencyKey string           `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Totals returns the sum of item subtotals and that sum minus discount.
func Totals(items []OrderItem, discount decimal.Decimal) (total, final decimal.Decimal) {
	total = decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total, total.Sub(discount)
}

// NewOrderItem snapshots a product into an order line.
func NewOrderItem(p Product, quantity int) OrderItem {
	return OrderItem{
		ProductID:    p.ID,
		ProductName:  p.Title,
		ProductImage: p.Thumbnail,
		Price:        p.Price,
		Quantity:     quantity,
		Subtotal:     p.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
