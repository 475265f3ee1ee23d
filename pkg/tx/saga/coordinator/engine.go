package coordinator

import (
	"context"
	"time"

	"github.com/nazeru/phoneshop-go/pkg/logging"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

// Step is one forward action of a saga. Compensate may be nil for steps
// that leave nothing to undo.
type Step struct {
	Name       common.StepName
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

type Engine struct {
	// Log is optional.
	Log TxLogStore
	// OnCompensate is called once per compensated step.
	OnCompensate func(step common.StepName)
}

// Execute runs steps in order. When a step fails, every completed step is
// compensated in reverse order and the step's error is returned unchanged.
// Compensation runs on a context detached from ctx cancellation.
func (e *Engine) Execute(ctx context.Context, txid common.TxID, workflow string, steps []Step) error {
	e.logCreate(ctx, txid, workflow, steps)
	e.setStatus(ctx, txid, common.TxRunning, "")

	done := make([]Step, 0, len(steps))
	for _, s := range steps {
		start := time.Now()
		err := s.Do(ctx)
		logging.Debug(logging.Fields{
			TxID:       string(txid),
			Step:       string(s.Name),
			DurationMS: time.Since(start).Milliseconds(),
			Message:    "saga step finished",
			Extra:      map[string]any{"workflow": workflow, "ok": err == nil},
		})
		if err != nil {
			e.compensate(ctx, txid, workflow, s.Name, done)
			return err
		}
		done = append(done, s)
	}

	e.setStatus(ctx, txid, common.TxCommitted, "")
	return nil
}

func (e *Engine) compensate(ctx context.Context, txid common.TxID, workflow string, failed common.StepName, done []Step) {
	cctx := context.WithoutCancel(ctx)
	e.setStatus(cctx, txid, common.TxCompensating, failed)

	final := common.TxCompensated
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if s.Compensate == nil {
			continue
		}
		if err := s.Compensate(cctx); err != nil {
			final = common.TxFailed
			logging.Error(logging.Fields{
				TxID:    string(txid),
				Step:    string(s.Name),
				Message: "compensation failed",
				Extra:   map[string]any{"workflow": workflow},
			}, err)
			continue
		}
		if e.OnCompensate != nil {
			e.OnCompensate(s.Name)
		}
	}
	e.setStatus(cctx, txid, final, failed)
}

func (e *Engine) logCreate(ctx context.Context, txid common.TxID, workflow string, steps []Step) {
	if e.Log == nil {
		return
	}
	names := make([]common.StepName, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	if err := e.Log.Create(ctx, txid, workflow, names); err != nil {
		logging.Error(logging.Fields{TxID: string(txid), Message: "saga log create failed"}, err)
	}
}

func (e *Engine) setStatus(ctx context.Context, txid common.TxID, status common.TxStatus, failedAt common.StepName) {
	if e.Log == nil {
		return
	}
	if err := e.Log.SetStatus(ctx, txid, status, failedAt); err != nil {
		logging.Error(logging.Fields{TxID: string(txid), Status: string(status), Message: "saga log update failed"}, err)
	}
}
