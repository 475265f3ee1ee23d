package common

import (
	"fmt"
	"strings"
)

type TxMode string

const (
	// TxModeLocal runs a workflow inside one storage transaction.
	TxModeLocal TxMode = "local"
	// TxModeSaga runs steps one by one and compensates completed steps on
	// failure. Used with stores that cannot span one transaction.
	TxModeSaga TxMode = "saga"
)

func ParseTxMode(s string) (TxMode, error) {
	switch TxMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TxModeLocal:
		return TxModeLocal, nil
	case TxModeSaga:
		return TxModeSaga, nil
	}
	return "", fmt.Errorf("unknown tx mode %q", s)
}

type TxStatus string

const (
	TxStarted      TxStatus = "STARTED"
	TxRunning      TxStatus = "RUNNING"
	TxCompensating TxStatus = "COMPENSATING"
	TxCommitted    TxStatus = "COMMITTED"
	TxCompensated  TxStatus = "COMPENSATED"
	// TxFailed means a compensation itself failed; the log keeps the step
	// for manual repair.
	TxFailed TxStatus = "FAILED"
)

type TxID string

type StepName string

// Steps of the order workflows.
const (
	StepReserveStock        StepName = "reserve_stock"
	StepResolveCustomer     StepName = "resolve_customer"
	StepAssignOrderNumber   StepName = "assign_order_number"
	StepRecordCustomerStats StepName = "record_customer_stats"
	StepPersistOrder        StepName = "persist_order"
	StepEnqueueEvents       StepName = "enqueue_events"
	StepMarkCancelled       StepName = "mark_cancelled"
	StepRestoreStock        StepName = "restore_stock"
	StepRevertCustomerStats StepName = "revert_customer_stats"
	StepUpdateStatus        StepName = "update_status"
)
