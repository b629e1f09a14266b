package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var compensationOverride = AdministrativeOverride{reason: compensationReason}

// movementPlan is one ledger line plus its snapshot effect.
type movementPlan struct {
	bucket             Bucket
	quantity           Quantity
	kind               MovementKind
	reference          Reference
	note               string
	actor              ActorID
	effectiveAt        time.Time
	createdAt          time.Time
	enforceNonNegative bool
	// skipPrecheck leaves rejection to the guarded write alone.
	skipPrecheck bool
	// guardFailure is the error kind a rejected guarded write maps to.
	guardFailure error
}

type compensation struct {
	name string
	undo func(ctx context.Context, store Store) error
}

// unitOfWork applies movement plans either inside one store transaction or as
// a saga that records how to undo every completed step.
type unitOfWork struct {
	store         Store
	saga          bool
	compensations []compensation
}

func (service *Service) runUnitOfWork(ctx context.Context, fn func(ctx context.Context, work *unitOfWork) error) error {
	if service.transactional {
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			return fn(ctx, &unitOfWork{store: transactionStore})
		})
	}
	work := &unitOfWork{store: service.store, saga: true}
	err := fn(ctx, work)
	if err == nil {
		return nil
	}
	// Compensation must finish even when the caller has gone away.
	if compensationErr := work.compensate(context.WithoutCancel(ctx)); compensationErr != nil {
		return errors.Join(err, WrapError(operationService, subjectCompensation, codeRollback, fmt.Errorf("%w: %w", ErrCompensationFailed, compensationErr)))
	}
	return err
}

func (work *unitOfWork) remember(name string, undo func(ctx context.Context, store Store) error) {
	if !work.saga {
		return
	}
	work.compensations = append(work.compensations, compensation{name: name, undo: undo})
}

// compensate replays undo steps newest first. A failing step does not stop
// the remaining ones; every failure is reported.
func (work *unitOfWork) compensate(ctx context.Context) error {
	var failures []error
	for index := len(work.compensations) - 1; index >= 0; index-- {
		step := work.compensations[index]
		if err := step.undo(ctx, work.store); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	work.compensations = nil
	return errors.Join(failures...)
}

func (work *unitOfWork) post(ctx context.Context, plan movementPlan) (MovementResult, error) {
	input, err := NewEntryInput(plan.bucket, plan.quantity, plan.kind, plan.reference, plan.note, plan.actor, plan.effectiveAt, plan.createdAt)
	if err != nil {
		return MovementResult{}, WrapError(operationService, subjectMovement, codeInvalid, err)
	}
	guard := Unguarded
	if plan.enforceNonNegative && plan.quantity.IsNegative() {
		guard = GuardNonNegative
		if !plan.skipPrecheck {
			if err := work.precheckOnHand(ctx, plan.bucket, plan.quantity.Abs().Decimal()); err != nil {
				return MovementResult{}, err
			}
		}
	}
	delta := plan.quantity.Decimal()

	if !work.saga {
		entry, err := work.store.RecordEntry(ctx, input)
		if err != nil {
			return MovementResult{}, err
		}
		snapshot, err := work.store.IncrementOnHand(ctx, plan.bucket, delta, guard)
		if err != nil {
			return MovementResult{}, plan.mapGuardError(err)
		}
		return MovementResult{Entry: entry, Snapshot: snapshot}, nil
	}

	// Saga order: the guarded snapshot write goes first so contention is
	// detected before the ledger is touched.
	snapshot, err := work.store.IncrementOnHand(ctx, plan.bucket, delta, guard)
	if err != nil {
		return MovementResult{}, plan.mapGuardError(err)
	}
	work.remember("revert on-hand "+plan.bucket.String(), func(ctx context.Context, store Store) error {
		_, err := store.IncrementOnHand(ctx, plan.bucket, delta.Neg(), Unguarded)
		return err
	})
	entry, err := work.store.RecordEntry(ctx, input)
	if err != nil {
		return MovementResult{}, err
	}
	work.remember("remove ledger entry "+entry.EntryID.String(), func(ctx context.Context, store Store) error {
		return store.RemoveEntry(ctx, entry.EntryID, compensationOverride)
	})
	return MovementResult{Entry: entry, Snapshot: snapshot}, nil
}

func (work *unitOfWork) precheckOnHand(ctx context.Context, bucket Bucket, required decimal.Decimal) error {
	snapshot, err := work.store.ReadSnapshot(ctx, bucket)
	if err != nil {
		return err
	}
	if snapshot.OnHand.LessThan(required) {
		return insufficientStock(subjectSnapshot, bucket, required, snapshot.OnHand)
	}
	return nil
}

func (plan movementPlan) mapGuardError(err error) error {
	if !errors.Is(err, ErrGuardRejected) {
		return err
	}
	failure := plan.guardFailure
	if failure == nil {
		failure = ErrInsufficientStock
	}
	code := codeInsufficient
	if errors.Is(failure, ErrConcurrentModification) {
		code = codeConflict
	}
	return WrapError(operationService, subjectSnapshot, code, fmt.Errorf("%w: bucket %s cannot cover %s: %w", failure, plan.bucket, plan.quantity.Abs(), err))
}

func insufficientStock(subject string, bucket Bucket, required decimal.Decimal, available decimal.Decimal) error {
	return WrapError(operationService, subject, codeInsufficient, fmt.Errorf("%w: bucket %s requires %s %s, has %s", ErrInsufficientStock, bucket, required, bucket.Unit(), available))
}
