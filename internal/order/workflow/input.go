package workflow

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// MaxQuantity bounds the units of one product in an order, summed over
// repeated items.
const MaxQuantity = 1_000_000

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderInput struct {
	Customer      CustomerInput        `json:"customer"`
	Items         []ItemInput          `json:"items"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Note          string               `json:"note"`
	Discount      decimal.Decimal      `json:"discount"`

	CreatedBy      string `json:"-"`
	IdempotencyKey string `json:"-"`
}

// normalize trims the input and fills defaults. It runs before validate.
func (in *CreateOrderInput) normalize() {
	in.Customer.Name = strings.TrimSpace(in.Customer.Name)
	in.Customer.Phone = domain.NormalizePhone(in.Customer.Phone)
	in.Customer.Email = strings.TrimSpace(in.Customer.Email)
	in.Customer.Address = strings.TrimSpace(in.Customer.Address)
	in.Note = strings.TrimSpace(in.Note)
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCash
	}
	for i := range in.Items {
		in.Items[i].ProductID = strings.TrimSpace(in.Items[i].ProductID)
	}
}

func (in *CreateOrderInput) validate() error {
	switch {
	case in.Customer.Name == "":
		return domain.Validationf("customer name is required")
	case in.Customer.Address == "":
		return domain.Validationf("customer address is required")
	}
	if err := domain.ValidatePhone(in.Customer.Phone); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return domain.Validationf("order must contain at least one item")
	}
	total := make(map[string]int, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" {
			return domain.Validationf("item %d: productId is required", i)
		}
		if it.Quantity <= 0 {
			return domain.Validationf("item %d: quantity must be > 0", i)
		}
		if it.Quantity > MaxQuantity || total[it.ProductID] > MaxQuantity-it.Quantity {
			return domain.Validationf("item %d: quantity of product %s exceeds %d", i, it.ProductID, MaxQuantity)
		}
		total[it.ProductID] += it.Quantity
	}
	if !in.PaymentMethod.Valid() {
		return domain.Validationf("invalid payment method %q", in.PaymentMethod)
	}
	if in.Discount.IsNegative() {
		return domain.Validationf("discount must be >= 0")
	}
	return nil
}

// demand is the summed quantity per product. Demand lists are ordered by
// product id so concurrent workflows lock product rows in the same order.
type demand struct {
	ProductID string
	Quantity  int
}

func sumDemand(items []ItemInput) []demand {
	idx := map[string]int{}
	var out []demand
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, demand{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func itemDemand(items []domain.OrderItem) []demand {
	in := make([]ItemInput, 0, len(items))
	for _, it := range items {
		in = append(in, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return sumDemand(in)
}

type StatusUpdate struct {
	OrderStatus   domain.OrderStatus   `json:"orderStatus"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

func (u StatusUpdate) validate() error {
	if u.OrderStatus == "" && u.PaymentStatus == "" {
		return domain.Validationf("orderStatus or paymentStatus is required")
	}
	if u.OrderStatus != "" && !u.OrderStatus.Valid() {
		return domain.Validationf("invalid order status %q", u.OrderStatus)
	}
	if u.PaymentStatus != "" && !u.PaymentStatus.Valid() {
		return domain.Validationf("invalid payment status %q", u.PaymentStatus)
	}
	return nil
}
