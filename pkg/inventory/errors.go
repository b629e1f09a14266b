package inventory

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the inventory service and its stores.
var (
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidMovementKind     = errors.New("invalid movement kind")
	ErrItemNotFound            = errors.New("item not found")
	ErrBucketNotFound          = errors.New("bucket not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrUnitMismatch            = errors.New("unit mismatch")
	ErrTransactionUnsupported  = errors.New("transactions unsupported")
	ErrLedgerImmutable         = errors.New("ledger entries are immutable")
	ErrGuardRejected           = errors.New("guarded write matched no rows")
	ErrCompensationFailed      = errors.New("compensation failed")
	ErrInvalidTransfer         = errors.New("invalid transfer")
	ErrInvalidRepack           = errors.New("invalid repack")
	ErrInvalidCompanyID        = errors.New("invalid company id")
	ErrInvalidItemID           = errors.New("invalid item id")
	ErrInvalidProductTypeID    = errors.New("invalid product type id")
	ErrInvalidWarehouseID      = errors.New("invalid warehouse id")
	ErrInvalidUnit             = errors.New("invalid unit of measure")
	ErrInvalidActorID          = errors.New("invalid actor id")
	ErrInvalidEntryID          = errors.New("invalid entry id")
	ErrInvalidDimension        = errors.New("invalid bucket dimension")
	ErrInvalidBucket           = errors.New("invalid bucket")
	ErrInvalidBalance          = errors.New("invalid balance")
	ErrInvalidFilter           = errors.New("invalid filter")
	ErrInvalidOverride         = errors.New("invalid administrative override")
	ErrInvalidTransactionMode  = errors.New("invalid transaction mode")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidReferenceType    = errors.New("invalid reference type")
	ErrEntryNotFound           = errors.New("ledger entry not found")
	ErrInvalidMovementRequest  = errors.New("invalid movement request")
	ErrInvalidReconcileRequest = errors.New("invalid reconcile request")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
