// Package tx runs the steps of an order workflow as one atomic unit, either
// inside a single storage transaction or as a compensating saga.
package tx

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

// Step is one mutation of a workflow. Compensate undoes Do and is only used
// in saga mode; a nil Compensate means there is nothing to undo.
type Step struct {
	Name       common.StepName
	Do         func(ctx context.Context, uow store.UnitOfWork) error
	Compensate func(ctx context.Context, uow store.UnitOfWork) error
}

type Executor interface {
	Mode() common.TxMode
	Run(ctx context.Context, workflow string, steps []Step) error
}

// Local runs every step inside store.InTx. A failing step rolls the whole
// transaction back, so compensations are never called.
type Local struct {
	Store store.Store
}

func (l Local) Mode() common.TxMode { return common.TxModeLocal }

func (l Local) Run(ctx context.Context, workflow string, steps []Step) error {
	return l.Store.InTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		for _, s := range steps {
			if err := s.Do(ctx, uow); err != nil {
				return err
			}
		}
		return nil
	})
}

// Saga runs each step as its own write against the store and hands the
// sequence to the coordinator, which compensates completed steps in reverse
// order when one fails.
type Saga struct {
	Store  store.Store
	Engine *coordinator.Engine
}

func (s Saga) Mode() common.TxMode { return common.TxModeSaga }

func (s Saga) Run(ctx context.Context, workflow string, steps []Step) error {
	engine := s.Engine
	if engine == nil {
		engine = &coordinator.Engine{Log: s.Store.TxLog()}
	}
	var uow store.UnitOfWork = s.Store
	out := make([]coordinator.Step, 0, len(steps))
	for _, st := range steps {
		st := st
		cs := coordinator.Step{
			Name: st.Name,
			Do:   func(ctx context.Context) error { return st.Do(ctx, uow) },
		}
		if st.Compensate != nil {
			cs.Compensate = func(ctx context.Context) error { return st.Compensate(ctx, uow) }
		}
		out = append(out, cs)
	}
	return engine.Execute(ctx, common.TxID(uuid.NewString()), workflow, out)
}

// New returns the executor for mode. onCompensate may be nil.
func New(mode common.TxMode, st store.Store, onCompensate func(common.StepName)) (Executor, error) {
	switch mode {
	case common.TxModeLocal:
		return Local{Store: st}, nil
	case common.TxModeSaga:
		return Saga{Store: st, Engine: &coordinator.Engine{Log: st.TxLog(), OnCompensate: onCompensate}}, nil
	}
	return nil, fmt.Errorf("unknown tx mode %q", mode)
}
