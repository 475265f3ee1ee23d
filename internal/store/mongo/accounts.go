package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

var (
	isCustomer = bson.E{Key: "role", Value: string(domain.RoleCustomer)}
	isStaff    = bson.E{Key: "role", Value: bson.D{{Key: "$ne", Value: string(domain.RoleCustomer)}}}
)

func byID(id string) bson.E { return bson.E{Key: "_id", Value: id} }

func findAccounts(ctx context.Context, c *mongo.Collection, filter bson.D, opts *options.FindOptions) ([]accountDoc, error) {
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []accountDoc
	err = cur.All(ctx, &docs)
	return docs, err
}

func searchAny(search string, fields ...string) bson.E {
	or := bson.A{}
	for _, f := range fields {
		or = append(or, bson.D{{Key: f, Value: contains(search)}})
	}
	return bson.E{Key: "$or", Value: or}
}

type customerRepo struct{ c *mongo.Collection }

func (r customerRepo) one(ctx context.Context, filter bson.D, what string) (domain.Customer, error) {
	var d accountDoc
	if err := r.c.FindOne(ctx, append(filter, isCustomer)).Decode(&d); err != nil {
		return domain.Customer{}, mapErr(err, what)
	}
	return d.customer(), nil
}

func (r customerRepo) Get(ctx context.Context, id string) (domain.Customer, error) {
	return r.one(ctx, bson.D{byID(id)}, "customer "+id)
}

func (r customerRepo) FindByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return r.one(ctx, bson.D{{Key: "phone", Value: phone}}, "customer with phone "+phone)
}

func (r customerRepo) List(ctx context.Context, f store.CustomerFilter) ([]domain.Customer, error) {
	filter := bson.D{isCustomer}
	if f.Search != "" {
		filter = append(filter, searchAny(f.Search, "fullName", "phone", "email"))
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "totalSpent", Value: -1}, {Key: "phone", Value: 1}}).
		SetLimit(int64(store.Limit(f.Limit)))
	docs, err := findAccounts(ctx, r.c, filter, opts)
	if err != nil {
		return nil, mapErr(err, "list customers")
	}
	out := make([]domain.Customer, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.customer())
	}
	return out, nil
}

func (r customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	if c.AccountID == "" {
		c.AccountID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.c.InsertOne(ctx, newCustomerDoc(*c))
	return mapErr(err, "customer "+c.Phone)
}

func (r customerRepo) update(ctx context.Context, id string, update bson.D) (domain.Customer, error) {
	var d accountDoc
	err := r.c.FindOneAndUpdate(ctx, bson.D{byID(id), isCustomer}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return domain.Customer{}, mapErr(err, "customer "+id)
	}
	return d.customer(), nil
}

func (r customerRepo) UpdateProfile(ctx context.Context, id string, p domain.CustomerProfile) (domain.Customer, error) {
	return r.update(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "fullName", Value: p.FullName},
		{Key: "email", Value: p.Email},
		{Key: "address", Value: p.Address},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

func (r customerRepo) AdjustStats(ctx context.Context, id string, d domain.StatsDelta) (domain.Customer, error) {
	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	if d.LastOrderAt != nil {
		set = append(set, bson.E{Key: "lastOrderDate", Value: *d.LastOrderAt})
	}
	return r.update(ctx, id, bson.D{
		{Key: "$inc", Value: bson.D{
			{Key: "totalOrders", Value: d.Orders},
			{Key: "totalSpent", Value: toD128(d.Spent)},
		}},
		{Key: "$set", Value: set},
	})
}

func (r customerRepo) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.D{byID(id), isCustomer})
	if err != nil {
		return mapErr(err, "customer "+id)
	}
	if res.DeletedCount == 0 {
		return domain.NotFoundf("customer %s not found", id)
	}
	return nil
}

type accountRepo struct{ c *mongo.Collection }

func (r accountRepo) CreateStaff(ctx context.Context, a *domain.StaffAccount) error {
	if a.AccountID == "" {
		a.AccountID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.c.InsertOne(ctx, newStaffDoc(*a))
	return mapErr(err, "username "+a.Username)
}

func (r accountRepo) GetStaff(ctx context.Context, id string) (domain.StaffAccount, error) {
	var d accountDoc
	if err := r.c.FindOne(ctx, bson.D{byID(id), isStaff}).Decode(&d); err != nil {
		return domain.StaffAccount{}, mapErr(err, "account "+id)
	}
	return d.staff(), nil
}

func (r accountRepo) ListStaff(ctx context.Context, f store.AccountFilter) ([]domain.StaffAccount, error) {
	filter := bson.D{isStaff}
	if f.Role != "" {
		filter = bson.D{{Key: "role", Value: string(f.Role)}}
	}
	if f.Search != "" {
		filter = append(filter, searchAny(f.Search, "username", "fullName", "email"))
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "username", Value: 1}}).
		SetLimit(int64(store.Limit(f.Limit)))
	docs, err := findAccounts(ctx, r.c, filter, opts)
	if err != nil {
		return nil, mapErr(err, "list accounts")
	}
	out := make([]domain.StaffAccount, 0, len(docs))
	for _, d := range docs {
		if d.Role == string(domain.RoleCustomer) {
			continue
		}
		out = append(out, d.staff())
	}
	return out, nil
}

// UpdateStaff rewrites the profile and role. Password state is changed only
// through SetPassword.
func (r accountRepo) UpdateStaff(ctx context.Context, a *domain.StaffAccount) error {
	var d accountDoc
	err := r.c.FindOneAndUpdate(ctx, bson.D{byID(a.AccountID), isStaff}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "username", Value: a.Username},
		{Key: "role", Value: string(a.AccountRole)},
		{Key: "isActive", Value: a.Active},
		{Key: "fullName", Value: a.FullName},
		{Key: "email", Value: a.Email},
		{Key: "phone", Value: a.Phone},
		{Key: "address", Value: a.Address},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return mapErr(err, "account "+a.AccountID)
	}
	*a = d.staff()
	return nil
}

func (r accountRepo) FindByUsername(ctx context.Context, username string) (domain.Principal, error) {
	var d accountDoc
	if err := r.c.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&d); err != nil {
		return nil, mapErr(err, "account "+username)
	}
	return d.principal(), nil
}

func (r accountRepo) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	var d accountDoc
	if err := r.c.FindOne(ctx, bson.D{byID(id)}).Decode(&d); err != nil {
		return nil, mapErr(err, "account "+id)
	}
	return d.principal(), nil
}

func (r accountRepo) set(ctx context.Context, id string, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	res, err := r.c.UpdateOne(ctx, bson.D{byID(id)}, bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return mapErr(err, "account "+id)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundf("account %s not found", id)
	}
	return nil
}

func (r accountRepo) SetPassword(ctx context.Context, id, hash string, mustRotate bool) error {
	return r.set(ctx, id, bson.D{
		{Key: "passwordHash", Value: hash},
		{Key: "mustRotatePassword", Value: mustRotate},
	})
}

func (r accountRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.set(ctx, id, bson.D{{Key: "isActive", Value: active}})
}
