package inventory

import (
	"context"
	"fmt"
)

// Snapshot reads one bucket. A bucket that never moved reports zero stock.
func (service *Service) Snapshot(ctx context.Context, locator StockLocator) (Snapshot, error) {
	bucket, err := service.resolveBucket(ctx, locator)
	if err != nil {
		return Snapshot{}, err
	}
	return service.store.ReadSnapshot(ctx, bucket)
}

// Snapshots lists stored bucket balances matching filter.
func (service *Service) Snapshots(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, WrapError(operationService, subjectSnapshot, codeInvalid, err)
	}
	return service.store.ListSnapshots(ctx, filter)
}

// Ledger lists ledger entries matching filter, newest effective time first
// unless the filter asks for ascending order.
func (service *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	normalized, err := filter.Normalize()
	if err != nil {
		return nil, WrapError(operationService, subjectLedger, codeInvalid, err)
	}
	return service.store.ListEntries(ctx, normalized)
}

// AmendLedgerNote rewrites the note of a recorded entry. Only the
// administrative path may touch a ledger row after it is written.
func (service *Service) AmendLedgerNote(ctx context.Context, entryID EntryID, note string, override AdministrativeOverride) error {
	operationError := func() error {
		if !override.Granted() {
			return WrapError(operationService, subjectLedger, codeInvalid, fmt.Errorf("%w: administrative override required", ErrLedgerImmutable))
		}
		return service.store.AmendEntry(ctx, entryID, note, override)
	}()
	service.logOperation(ctx, OperationLog{
		Operation: OperationAmendNote,
		Reference: Reference{Type: "LEDGER_ENTRY", ID: entryID.String()},
		Error:     operationError,
	})
	return operationError
}
