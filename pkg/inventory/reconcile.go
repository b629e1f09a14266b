package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Reconcile compares the ledger sum of every bucket of a company with the
// snapshot's on-hand quantity and returns the buckets that disagree.
func (service *Service) Reconcile(ctx context.Context, companyID CompanyID) ([]Discrepancy, error) {
	discrepancies, operationError := service.reconcile(ctx, companyID)
	service.logOperation(ctx, OperationLog{
		Operation: OperationReconcile,
		CompanyID: companyID,
		Quantity:  decimal.NewFromInt(int64(len(discrepancies))),
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}
	return discrepancies, nil
}

func (service *Service) reconcile(ctx context.Context, companyID CompanyID) ([]Discrepancy, error) {
	if companyID.IsZero() {
		return nil, WrapError(operationService, subjectLedger, codeInvalid, fmt.Errorf("%w: %w", ErrInvalidReconcileRequest, ErrInvalidCompanyID))
	}
	totals, err := service.store.SumEntriesByBucket(ctx, companyID)
	if err != nil {
		return nil, err
	}
	snapshots, err := service.store.ListSnapshots(ctx, SnapshotFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return compareBalances(totals, snapshots), nil
}

func compareBalances(totals []BucketTotal, snapshots []Snapshot) []Discrepancy {
	byBucket := make(map[Bucket]*Discrepancy, len(totals)+len(snapshots))
	for _, total := range totals {
		byBucket[total.Bucket] = &Discrepancy{Bucket: total.Bucket, LedgerTotal: total.Total, OnHand: decimal.Zero}
	}
	for _, snapshot := range snapshots {
		existing, ok := byBucket[snapshot.Bucket]
		if !ok {
			byBucket[snapshot.Bucket] = &Discrepancy{Bucket: snapshot.Bucket, LedgerTotal: decimal.Zero, OnHand: snapshot.OnHand}
			continue
		}
		existing.OnHand = snapshot.OnHand
	}
	discrepancies := make([]Discrepancy, 0)
	for _, candidate := range byBucket {
		if !candidate.LedgerTotal.Equal(candidate.OnHand) {
			discrepancies = append(discrepancies, *candidate)
		}
	}
	sort.Slice(discrepancies, func(left, right int) bool {
		return discrepancies[left].Bucket.Key() < discrepancies[right].Bucket.Key()
	})
	return discrepancies
}
