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
	"github.com/nazeru/phoneshop-go/pkg/outbox"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "orderNumber", Value: -1}}

type orderRepo struct{ c *mongo.Collection }

func (r orderRepo) one(ctx context.Context, filter bson.D, what string) (domain.Order, error) {
	var d orderDoc
	if err := r.c.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.Order{}, mapErr(err, what)
	}
	return d.toDomain(), nil
}

func (r orderRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]domain.Order, error) {
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(err, "list orders")
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err, "list orders")
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r orderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.one(ctx, bson.D{byID(id)}, "order "+id)
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	return r.one(ctx, bson.D{{Key: "idempotencyKey", Value: key}}, "order for idempotency key")
}

func (r orderRepo) Insert(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	_, err := r.c.InsertOne(ctx, newOrderDoc(*o))
	return mapErr(err, "order "+o.OrderNumber)
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.D{byID(id)})
	if err != nil {
		return mapErr(err, "order "+id)
	}
	if res.DeletedCount == 0 {
		return domain.NotFoundf("order %s not found", id)
	}
	return nil
}

func (r orderRepo) List(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(store.Limit(f.Limit)))
	return r.find(ctx, orderFilter(f), opts)
}

func (r orderRepo) CountByPhone(ctx context.Context, phone string) (int, error) {
	n, err := r.c.CountDocuments(ctx, bson.D{{Key: "customer.phone", Value: phone}})
	return int(n), mapErr(err, "count orders")
}

// UpdateStatus is a compare-and-set on orderStatus. Losing the race reports
// the status the order actually has.
func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, payment domain.PaymentStatus) (domain.Order, error) {
	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	if to != "" {
		set = append(set, bson.E{Key: "orderStatus", Value: string(to)})
	}
	if payment != "" {
		set = append(set, bson.E{Key: "paymentStatus", Value: string(payment)})
	}
	var d orderDoc
	err := r.c.FindOneAndUpdate(ctx,
		bson.D{byID(id), {Key: "orderStatus", Value: string(from)}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err == nil {
		return d.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, mapErr(err, "update order status")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{}, domain.InvalidTransitionf("order %s is %s, not %s", current.OrderNumber, current.OrderStatus, from)
}

func (r orderRepo) ListMissingImages(ctx context.Context) ([]domain.Order, error) {
	filter := bson.D{{Key: "items", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "productImage", Value: bson.D{{Key: "$in", Value: bson.A{"", nil}}}},
	}}}}}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (r orderRepo) UpdateItems(ctx context.Context, id string, items []domain.OrderItem) error {
	res, err := r.c.UpdateOne(ctx, bson.D{byID(id)}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "items", Value: newItemDocs(items)},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
	if err != nil {
		return mapErr(err, "order "+id)
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundf("order %s not found", id)
	}
	return nil
}

type sequenceRepo struct{ c *mongo.Collection }

// Next increments the counter for day. Two first-of-day upserts can race on
// the _id index; the loser retries once and finds the document.
func (r sequenceRepo) Next(ctx context.Context, day string) (int, error) {
	var doc struct {
		Value int `bson:"value"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: 1}}}}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = r.c.FindOneAndUpdate(ctx, bson.D{byID(day)}, update, opts).Decode(&doc)
		if err == nil {
			return doc.Value, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return 0, mapErr(err, "order sequence")
}

type outboxDoc struct {
	ID        string     `bson:"_id"`
	EventID   string     `bson:"eventId"`
	Topic     string     `bson:"topic"`
	Key       string     `bson:"key"`
	Payload   string     `bson:"payload"`
	CreatedAt time.Time  `bson:"createdAt"`
	SentAt    *time.Time `bson:"sentAt"`
}

type outboxRepo struct{ c *mongo.Collection }

func (r outboxRepo) Insert(ctx context.Context, rec outbox.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.c.InsertOne(ctx, outboxDoc{
		ID:        rec.ID,
		EventID:   rec.EventID,
		Topic:     rec.Topic,
		Key:       rec.Key,
		Payload:   string(rec.Payload),
		CreatedAt: rec.CreatedAt,
	})
	return mapErr(err, "outbox event "+rec.EventID)
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.c.Find(ctx, bson.D{{Key: "sentAt", Value: nil}}, opts)
	if err != nil {
		return nil, mapErr(err, "outbox fetch")
	}
	var docs []outboxDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err, "outbox fetch")
	}
	out := make([]outbox.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, outbox.Record{
			ID:        d.ID,
			EventID:   d.EventID,
			Topic:     d.Topic,
			Key:       d.Key,
			Payload:   []byte(d.Payload),
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (r outboxRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.c.UpdateOne(ctx, bson.D{byID(id)}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "sentAt", Value: time.Now().UTC()},
	}}})
	return mapErr(err, "outbox mark sent")
}

type txLogDoc struct {
	TxID      string    `bson:"_id"`
	Workflow  string    `bson:"workflow"`
	Steps     []string  `bson:"steps"`
	Status    string    `bson:"status"`
	FailedAt  string    `bson:"failedAt"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type txLogRepo struct{ c *mongo.Collection }

func (r txLogRepo) Create(ctx context.Context, txid common.TxID, workflow string, steps []common.StepName) error {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, string(s))
	}
	now := time.Now().UTC()
	_, err := r.c.InsertOne(ctx, txLogDoc{
		TxID:      string(txid),
		Workflow:  workflow,
		Steps:     names,
		Status:    string(common.TxStarted),
		CreatedAt: now,
		UpdatedAt: now,
	})
	return mapErr(err, "saga log")
}

func (r txLogRepo) SetStatus(ctx context.Context, txid common.TxID, status common.TxStatus, failedAt common.StepName) error {
	set := bson.D{
		{Key: "status", Value: string(status)},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}
	if failedAt != "" {
		set = append(set, bson.E{Key: "failedAt", Value: string(failedAt)})
	}
	_, err := r.c.UpdateOne(ctx, bson.D{byID(string(txid))}, bson.D{{Key: "$set", Value: set}})
	return mapErr(err, "saga log")
}

func (r txLogRepo) Get(ctx context.Context, txid common.TxID) (coordinator.Entry, error) {
	var d txLogDoc
	if err := r.c.FindOne(ctx, bson.D{byID(string(txid))}).Decode(&d); err != nil {
		return coordinator.Entry{}, mapErr(err, "saga tx "+string(txid))
	}
	e := coordinator.Entry{
		TxID:      common.TxID(d.TxID),
		Workflow:  d.Workflow,
		Status:    common.TxStatus(d.Status),
		FailedAt:  common.StepName(d.FailedAt),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, s := range d.Steps {
		e.Steps = append(e.Steps, common.StepName(s))
	}
	return e, nil
}
