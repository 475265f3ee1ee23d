package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

type productRepo struct{ c *mongo.Collection }

func (r productRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var d productDoc
	if err := r.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d); err != nil {
		return domain.Product{}, mapErr(err, "product "+id)
	}
	return d.toDomain(), nil
}

func (r productRepo) List(ctx context.Context, f store.ProductFilter) ([]domain.Product, error) {
	opts := options.Find().SetSort(productSort(f.Sort)).SetLimit(int64(store.Limit(f.Limit)))
	return r.find(ctx, productFilter(f), opts)
}

func (r productRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]domain.Product, error) {
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(err, "list products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err, "list products")
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r productRepo) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.c.InsertOne(ctx, newProductDoc(*p))
	return mapErr(err, "product "+p.Slug)
}

// Update sets every field but stock and createdAt in one findOneAndUpdate.
func (r productRepo) Update(ctx context.Context, p *domain.Product) error {
	raw, err := bson.Marshal(newProductDoc(*p))
	if err != nil {
		return err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return err
	}
	for _, k := range []string{"_id", "stock", "createdAt"} {
		delete(set, k)
	}
	set["updatedAt"] = time.Now().UTC()

	var d productDoc
	err = r.c.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: p.ID}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return mapErr(err, "product "+p.ID)
	}
	p.Stock = d.Stock
	p.CreatedAt = d.CreatedAt
	p.UpdatedAt = d.UpdatedAt
	return nil
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapErr(err, "product "+id)
	}
	if res.DeletedCount == 0 {
		return domain.NotFoundf("product %s not found", id)
	}
	return nil
}

func (r productRepo) LowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	filter := bson.D{{Key: "stock", Value: bson.D{{Key: "$gt", Value: 0}, {Key: "$lte", Value: threshold}}}}
	opts := options.Find().
		SetSort(bson.D{{Key: "stock", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(store.Limit(limit)))
	return r.find(ctx, filter, opts)
}

// ReserveStock decrements only when enough units remain, so two concurrent
// reservations can never both take the last unit.
func (r productRepo) ReserveStock(ctx context.Context, id string, qty int) (int, error) {
	if err := store.CheckQuantity(qty); err != nil {
		return 0, err
	}
	return r.AdjustStock(ctx, id, -qty)
}

func (r productRepo) ReleaseStock(ctx context.Context, id string, qty int) error {
	if err := store.CheckQuantity(qty); err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: qty}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
	})
	if err != nil {
		return mapErr(err, "release stock")
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundf("product %s not found", id)
	}
	return nil
}

// AdjustStock guards the $inc with stock >= -delta.
func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var d productDoc
	err := r.c.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "stock", Value: bson.D{{Key: "$gte", Value: -delta}}}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "stock", Value: delta}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err == nil {
		return d.Stock, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, mapErr(err, "adjust stock")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return 0, &domain.InsufficientStockError{ProductID: id, Title: current.Title, Available: current.Stock, Requested: -delta}
}
