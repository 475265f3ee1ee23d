package coordinator

import (
	"context"
	"time"

	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

// Entry is one row of the saga log.
type Entry struct {
	TxID      common.TxID       `json:"txid"`
	Workflow  string            `json:"workflow"`
	Steps     []common.StepName `json:"steps"`
	Status    common.TxStatus   `json:"status"`
	FailedAt  common.StepName   `json:"failedAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type TxLogStore interface {
	Create(ctx context.Context, txid common.TxID, workflow string, steps []common.StepName) error
	SetStatus(ctx context.Context, txid common.TxID, status common.TxStatus, failedAt common.StepName) error
	Get(ctx context.Context, txid common.TxID) (Entry, error)
}
