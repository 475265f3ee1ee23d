package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

func toD128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// shopspring renders plain decimal strings, which always parse
		panic(err)
	}
	return v
}

func fromD128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// anyDecimal converts an aggregation result. $sum yields an int when every
// input is an int literal and Decimal128 otherwise.
func anyDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case primitive.Decimal128:
		return fromD128(n)
	case int32:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case float64:
		return decimal.NewFromFloat(n)
	}
	return decimal.Zero
}

func anyInt(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

type productDoc struct {
	ID                 string               `bson:"_id"`
	Title              string               `bson:"title"`
	Slug               string               `bson:"slug"`
	Description        string               `bson:"description"`
	Brand              string               `bson:"brand"`
	Category           string               `bson:"category"`
	Price              primitive.Decimal128 `bson:"price"`
	DiscountPercentage float64              `bson:"discountPercentage"`
	Rating             float64              `bson:"rating"`
	Stock              int                  `bson:"stock"`
	Thumbnail          string               `bson:"thumbnail"`
	Images             []string             `bson:"images"`
	Active             bool                 `bson:"isActive"`
	Screen             string               `bson:"screen"`
	OS                 string               `bson:"os"`
	Camera             string               `bson:"camera"`
	CameraFront        string               `bson:"cameraFront"`
	CPU                string               `bson:"cpu"`
	RAM                string               `bson:"ram"`
	ROM                string               `bson:"rom"`
	Battery            string               `bson:"battery"`
	SIM                string               `bson:"sim"`
	Weight             string               `bson:"weight"`
	Colors             []string             `bson:"colors"`
	CreatedAt          time.Time            `bson:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt"`
}

func newProductDoc(p domain.Product) productDoc {
	return productDoc{
		ID: p.ID, Title: p.Title, Slug: p.Slug, Description: p.Description, Brand: p.Brand,
		Category: p.Category, Price: toD128(p.Price), DiscountPercentage: p.DiscountPercentage,
		Rating: p.Rating, Stock: p.Stock, Thumbnail: p.Thumbnail, Images: p.Images, Active: p.Active,
		Screen: p.Screen, OS: p.OS, Camera: p.Camera, CameraFront: p.CameraFront, CPU: p.CPU,
		RAM: p.RAM, ROM: p.ROM, Battery: p.Battery, SIM: p.SIM, Weight: p.Weight, Colors: p.Colors,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID: d.ID, Title: d.Title, Slug: d.Slug, Description: d.Description, Brand: d.Brand,
		Category: d.Category, Price: fromD128(d.Price), DiscountPercentage: d.DiscountPercentage,
		Rating: d.Rating, Stock: d.Stock, Thumbnail: d.Thumbnail, Images: d.Images, Active: d.Active,
		Screen: d.Screen, OS: d.OS, Camera: d.Camera, CameraFront: d.CameraFront, CPU: d.CPU,
		RAM: d.RAM, ROM: d.ROM, Battery: d.Battery, SIM: d.SIM, Weight: d.Weight, Colors: d.Colors,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// accountDoc stores every identity variant in one collection, discriminated
// by role. Customer-only fields are empty on staff documents.
type accountDoc struct {
	ID                 string               `bson:"_id"`
	Username           string               `bson:"username"`
	PasswordHash       string               `bson:"passwordHash"`
	Role               string               `bson:"role"`
	MustRotatePassword bool                 `bson:"mustRotatePassword"`
	Active             bool                 `bson:"isActive"`
	FullName           string               `bson:"fullName"`
	Email              string               `bson:"email"`
	Address            string               `bson:"address"`
	Phone              string               `bson:"phone,omitempty"`
	TotalOrders        int                  `bson:"totalOrders"`
	TotalSpent         primitive.Decimal128 `bson:"totalSpent"`
	LastOrderDate      *time.Time           `bson:"lastOrderDate,omitempty"`
	CreatedAt          time.Time            `bson:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt"`
}

func credentialsOf(d accountDoc) domain.Credentials {
	return domain.Credentials{
		AccountID:          d.ID,
		Username:           d.Username,
		PasswordHash:       d.PasswordHash,
		MustRotatePassword: d.MustRotatePassword,
		Active:             d.Active,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func newCustomerDoc(c domain.Customer) accountDoc {
	return accountDoc{
		ID: c.AccountID, Username: c.Username, PasswordHash: c.PasswordHash,
		Role: string(domain.RoleCustomer), MustRotatePassword: c.MustRotatePassword, Active: c.Active,
		FullName: c.FullName, Email: c.Email, Address: c.Address, Phone: c.Phone,
		TotalOrders: c.TotalOrders, TotalSpent: toD128(c.TotalSpent), LastOrderDate: c.LastOrderDate,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (d accountDoc) customer() domain.Customer {
	return domain.Customer{
		Credentials:     credentialsOf(d),
		CustomerProfile: domain.CustomerProfile{FullName: d.FullName, Email: d.Email, Address: d.Address},
		Phone:           d.Phone,
		CustomerStats: domain.CustomerStats{
			TotalOrders:   d.TotalOrders,
			TotalSpent:    fromD128(d.TotalSpent),
			LastOrderDate: d.LastOrderDate,
		},
	}
}

func newStaffDoc(a domain.StaffAccount) accountDoc {
	return accountDoc{
		ID: a.AccountID, Username: a.Username, PasswordHash: a.PasswordHash,
		Role: string(a.AccountRole), MustRotatePassword: a.MustRotatePassword, Active: a.Active,
		FullName: a.FullName, Email: a.Email, Address: a.Address, Phone: a.Phone,
		TotalSpent: toD128(decimal.Zero), CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func (d accountDoc) staff() domain.StaffAccount {
	return domain.StaffAccount{
		Credentials: credentialsOf(d),
		AccountRole: domain.Role(d.Role),
		FullName:    d.FullName,
		Email:       d.Email,
		Phone:       d.Phone,
		Address:     d.Address,
	}
}

func (d accountDoc) principal() domain.Principal {
	if d.Role == string(domain.RoleCustomer) {
		c := d.customer()
		return &c
	}
	a := d.staff()
	return &a
}

type itemDoc struct {
	ProductID    string               `bson:"productId"`
	ProductName  string               `bson:"productName"`
	ProductImage string               `bson:"productImage"`
	Price        primitive.Decimal128 `bson:"price"`
	Quantity     int                  `bson:"quantity"`
	Subtotal     primitive.Decimal128 `bson:"subtotal"`
}

type snapshotDoc struct {
	Name    string `bson:"name"`
	Phone   string `bson:"phone"`
	Email   string `bson:"email"`
	Address string `bson:"address"`
}

type orderDoc struct {
	ID             string               `bson:"_id"`
	OrderNumber    string               `bson:"orderNumber"`
	CustomerID     string               `bson:"userId"`
	Customer       snapshotDoc          `bson:"customer"`
	Items          []itemDoc            `bson:"items"`
	TotalAmount    primitive.Decimal128 `bson:"totalAmount"`
	Discount       primitive.Decimal128 `bson:"discount"`
	FinalAmount    primitive.Decimal128 `bson:"finalAmount"`
	PaymentMethod  string               `bson:"paymentMethod"`
	PaymentStatus  string               `bson:"paymentStatus"`
	OrderStatus    string               `bson:"orderStatus"`
	Note           string               `bson:"note"`
	CreatedBy      string               `bson:"createdBy"`
	IdempotencyKey string               `bson:"idempotencyKey,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func newItemDocs(items []domain.OrderItem) []itemDoc {
	out := make([]itemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, itemDoc{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Price:        toD128(it.Price),
			Quantity:     it.Quantity,
			Subtotal:     toD128(it.Subtotal),
		})
	}
	return out
}

func newOrderDoc(o domain.Order) orderDoc {
	return orderDoc{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerID:     o.CustomerID,
		Customer:       snapshotDoc(o.Customer),
		Items:          newItemDocs(o.Items),
		TotalAmount:    toD128(o.TotalAmount),
		Discount:       toD128(o.Discount),
		FinalAmount:    toD128(o.FinalAmount),
		PaymentMethod:  string(o.PaymentMethod),
		PaymentStatus:  string(o.PaymentStatus),
		OrderStatus:    string(o.OrderStatus),
		Note:           o.Note,
		CreatedBy:      o.CreatedBy,
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Price:        fromD128(it.Price),
			Quantity:     it.Quantity,
			Subtotal:     fromD128(it.Subtotal),
		})
	}
	return domain.Order{
		ID:             d.ID,
		OrderNumber:    d.OrderNumber,
		CustomerID:     d.CustomerID,
		Customer:       domain.CustomerSnapshot(d.Customer),
		Items:          items,
		TotalAmount:    fromD128(d.TotalAmount),
		Discount:       fromD128(d.Discount),
		FinalAmount:    fromD128(d.FinalAmount),
		PaymentMethod:  domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus:  domain.PaymentStatus(d.PaymentStatus),
		OrderStatus:    domain.OrderStatus(d.OrderStatus),
		Note:           d.Note,
		CreatedBy:      d.CreatedBy,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
