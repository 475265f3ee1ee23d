// Package mongo implements the store ports on MongoDB. Ids are string _ids so
// they match the other backends. Multi-document transactions need a replica
// set; against a standalone server run the workflow with TX_MODE=saga.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

const (
	colProducts  = "products"
	colAccounts  = "accounts"
	colOrders    = "orders"
	colSequences = "order_sequences"
	colOutbox    = "outbox"
	colTxLog     = "saga_tx_log"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return s, nil
}

// EnsureIndexes creates the unique indexes the store relies on for conflict
// detection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colProducts: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colAccounts: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "phone", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "role", Value: string(domain.RoleCustomer)}}),
			},
		},
		colOrders: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "idempotencyKey", Value: bson.D{{Key: "$exists", Value: true}}}}),
			},
			{Keys: bson.D{{Key: "customer.phone", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "sentAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes on %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Products() store.ProductRepository {
	return productRepo{c: s.db.Collection(colProducts)}
}

func (s *Store) Customers() store.CustomerRepository {
	return customerRepo{c: s.db.Collection(colAccounts)}
}

func (s *Store) Accounts() store.AccountRepository {
	return accountRepo{c: s.db.Collection(colAccounts)}
}

func (s *Store) Orders() store.OrderRepository {
	return orderRepo{c: s.db.Collection(colOrders)}
}

func (s *Store) Sequences() store.SequenceRepository {
	return sequenceRepo{c: s.db.Collection(colSequences)}
}

func (s *Store) Outbox() store.OutboxRepository {
	return outboxRepo{c: s.db.Collection(colOutbox)}
}

func (s *Store) Reports() store.ReportRepository {
	return reportRepo{db: s.db}
}

func (s *Store) TxLog() coordinator.TxLogStore {
	return txLogRepo{c: s.db.Collection(colTxLog)}
}

// InTx runs fn inside a session transaction. Repositories pick the session
// up from the context handed to fn, so the Store itself is the unit of work.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.WrapNotFound(err, what+" not found")
	case mongo.IsDuplicateKeyError(err):
		return domain.WrapConflict(err, what+" already exists")
	}
	return fmt.Errorf("%s: %w", what, err)
}
