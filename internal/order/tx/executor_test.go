package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

var errBoom = errors.New("boom")

func seed(t *testing.T, st *memory.Store, stock int) string {
	t.Helper()
	p := domain.Product{Title: "Phone", Slug: "phone", Brand: "Acme", Price: decimal.NewFromInt(10), Stock: stock, Active: true}
	require.NoError(t, st.Products().Create(context.Background(), &p))
	return p.ID
}

func reserveThenFail(id string) []Step {
	return []Step{
		{
			Name: common.StepReserveStock,
			Do: func(ctx context.Context, uow store.UnitOfWork) error {
				_, err := uow.Products().ReserveStock(ctx, id, 2)
				return err
			},
			Compensate: func(ctx context.Context, uow store.UnitOfWork) error {
				return uow.Products().ReleaseStock(ctx, id, 2)
			},
		},
		{
			Name: common.StepPersistOrder,
			Do:   func(context.Context, store.UnitOfWork) error { return errBoom },
		},
	}
}

func TestLocalRollsBack(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := seed(t, st, 5)

	err := Local{Store: st}.Run(ctx, "test", reserveThenFail(id))
	require.ErrorIs(t, err, errBoom)

	p, err := st.Products().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestSagaCompensates(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := seed(t, st, 5)

	var compensated []common.StepName
	exec, err := New(common.TxModeSaga, st, func(s common.StepName) { compensated = append(compensated, s) })
	require.NoError(t, err)
	assert.Equal(t, common.TxModeSaga, exec.Mode())

	err = exec.Run(ctx, "test", reserveThenFail(id))
	require.ErrorIs(t, err, errBoom)

	p, err := st.Products().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, []common.StepName{common.StepReserveStock}, compensated)
}

func TestSagaCommits(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := seed(t, st, 5)

	steps := reserveThenFail(id)[:1]
	require.NoError(t, Saga{Store: st}.Run(ctx, "test", steps))

	p, err := st.Products().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(common.TxMode("2pc"), memory.New(), nil)
	assert.Error(t, err)
}
