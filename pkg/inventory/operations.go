package inventory

import (
	"context"
	"errors"
	"fmt"
)

// Transfer moves stock between two warehouses. Both legs commit or neither
// does.
func (service *Service) Transfer(ctx context.Context, request TransferRequest) (TransferResult, error) {
	var result TransferResult
	operationError := func() error {
		if err := requirePositive(request.Quantity); err != nil {
			return err
		}
		if !request.FromWarehouseID.IsZero() && request.FromWarehouseID == request.ToWarehouseID {
			return WrapError(operationService, subjectMovement, codeInvalid, fmt.Errorf("%w: source and destination warehouse are both %s", ErrInvalidTransfer, request.FromWarehouseID))
		}
		source, err := service.resolveBucket(ctx, StockLocator{
			CompanyID:   request.CompanyID,
			ItemID:      request.ItemID,
			WarehouseID: request.FromWarehouseID,
			Unit:        request.Unit,
			Bin:         request.Bin,
			BatchNo:     request.BatchNo,
		})
		if err != nil {
			return err
		}
		if request.ToWarehouseID.IsZero() {
			return WrapError(operationService, subjectBucket, codeInvalid, fmt.Errorf("%w: %w", ErrInvalidTransfer, ErrInvalidWarehouseID))
		}
		if err := service.catalog.LookupWarehouse(ctx, request.CompanyID, request.ToWarehouseID); err != nil {
			return err
		}
		destination := source.WithWarehouse(request.ToWarehouseID)
		reference := defaultReference(request.Reference, ReferenceTypeTransfer)
		return service.runUnitOfWork(ctx, func(ctx context.Context, work *unitOfWork) error {
			createdAt := service.now()
			out, err := work.post(ctx, movementPlan{
				bucket:             source,
				quantity:           request.Quantity.Negated(),
				kind:               MovementTransfer,
				reference:          reference,
				note:               request.Note,
				actor:              request.Actor,
				effectiveAt:        request.EffectiveAt,
				createdAt:          createdAt,
				enforceNonNegative: true,
			})
			if err != nil {
				return err
			}
			in, err := work.post(ctx, movementPlan{
				bucket:      destination,
				quantity:    request.Quantity,
				kind:        MovementTransfer,
				reference:   reference,
				note:        request.Note,
				actor:       request.Actor,
				effectiveAt: request.EffectiveAt,
				createdAt:   createdAt,
			})
			if err != nil {
				return err
			}
			result = TransferResult{Out: out, In: in}
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   OperationTransfer,
		CompanyID:   request.CompanyID,
		ItemID:      request.ItemID,
		WarehouseID: request.FromWarehouseID,
		Kind:        MovementTransfer,
		Quantity:    request.Quantity.Decimal(),
		Actor:       request.Actor,
		Reference:   request.Reference,
		Error:       operationError,
	})
	if operationError != nil {
		return TransferResult{}, operationError
	}
	return result, nil
}

// Repack turns stock of one item into the same quantity of another item of
// the same product type.
func (service *Service) Repack(ctx context.Context, request RepackRequest) (RepackResult, error) {
	var result RepackResult
	operationError := func() error {
		source, destination, err := service.resolveRepack(ctx, request)
		if err != nil {
			return err
		}
		reference := defaultReference(request.Reference, ReferenceTypeRepack)
		return service.runUnitOfWork(ctx, func(ctx context.Context, work *unitOfWork) error {
			createdAt := service.now()
			out, err := work.post(ctx, movementPlan{
				bucket:             source,
				quantity:           request.Quantity.Negated(),
				kind:               MovementRepack,
				reference:          reference,
				note:               request.Note,
				actor:              request.Actor,
				effectiveAt:        request.EffectiveAt,
				createdAt:          createdAt,
				enforceNonNegative: true,
			})
			if err != nil {
				return err
			}
			in, err := work.post(ctx, movementPlan{
				bucket:      destination,
				quantity:    request.Quantity,
				kind:        MovementRepack,
				reference:   reference,
				note:        request.Note,
				actor:       request.Actor,
				effectiveAt: request.EffectiveAt,
				createdAt:   createdAt,
			})
			if err != nil {
				return err
			}
			result = RepackResult{Out: out, In: in}
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   OperationRepack,
		CompanyID:   request.CompanyID,
		ItemID:      request.FromItemID,
		WarehouseID: request.WarehouseID,
		Kind:        MovementRepack,
		Quantity:    request.Quantity.Decimal(),
		Actor:       request.Actor,
		Reference:   request.Reference,
		Error:       operationError,
	})
	if operationError != nil {
		return RepackResult{}, operationError
	}
	return result, nil
}

// resolveRepack validates a repack before any movement is attempted.
func (service *Service) resolveRepack(ctx context.Context, request RepackRequest) (Bucket, Bucket, error) {
	if err := requirePositive(request.Quantity); err != nil {
		return Bucket{}, Bucket{}, err
	}
	if request.FromItemID.IsZero() || request.ToItemID.IsZero() {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectItem, codeInvalid, fmt.Errorf("%w: both items are required", ErrInvalidRepack))
	}
	if request.FromItemID == request.ToItemID {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectItem, codeInvalid, fmt.Errorf("%w: source and target item are both %s", ErrInvalidRepack, request.FromItemID))
	}
	if request.CompanyID.IsZero() || request.WarehouseID.IsZero() {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectBucket, codeInvalid, fmt.Errorf("%w: company and warehouse are required", ErrInvalidBucket))
	}
	fromItem, err := service.catalog.LookupItem(ctx, request.CompanyID, request.FromItemID)
	if err != nil {
		return Bucket{}, Bucket{}, err
	}
	toItem, err := service.catalog.LookupItem(ctx, request.CompanyID, request.ToItemID)
	if err != nil {
		return Bucket{}, Bucket{}, err
	}
	if fromItem.ProductTypeID != toItem.ProductTypeID {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectItem, codeMismatch, fmt.Errorf("%w: product type %s differs from %s", ErrUnitMismatch, fromItem.ProductTypeID, toItem.ProductTypeID))
	}
	unit, err := resolveRepackUnit(request.Unit, fromItem, toItem)
	if err != nil {
		return Bucket{}, Bucket{}, err
	}
	if err := service.catalog.LookupWarehouse(ctx, request.CompanyID, request.WarehouseID); err != nil {
		return Bucket{}, Bucket{}, err
	}
	source, err := NewBucket(request.CompanyID, fromItem.ItemID, fromItem.ProductTypeID, request.WarehouseID, unit, request.Bin, request.BatchNo)
	if err != nil {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectBucket, codeInvalid, err)
	}
	destination, err := NewBucket(request.CompanyID, toItem.ItemID, toItem.ProductTypeID, request.WarehouseID, unit, request.Bin, request.BatchNo)
	if err != nil {
		return Bucket{}, Bucket{}, WrapError(operationService, subjectBucket, codeInvalid, err)
	}
	return source, destination, nil
}

func resolveRepackUnit(requested UnitOfMeasure, fromItem Item, toItem Item) (UnitOfMeasure, error) {
	fromUnit, fromDeclared := fromItem.Unit.Value()
	toUnit, toDeclared := toItem.Unit.Value()
	if fromDeclared && toDeclared && fromUnit != toUnit {
		return UnitOfMeasure{}, WrapError(operationService, subjectItem, codeMismatch, fmt.Errorf("%w: %s is counted in %s, %s in %s", ErrUnitMismatch, fromItem.ItemID, fromUnit, toItem.ItemID, toUnit))
	}
	if !requested.IsZero() {
		for _, declared := range []Dimension{fromItem.Unit, toItem.Unit} {
			if value, ok := declared.Value(); ok && value != requested.String() {
				return UnitOfMeasure{}, WrapError(operationService, subjectItem, codeMismatch, fmt.Errorf("%w: requested %s, item declares %s", ErrUnitMismatch, requested, value))
			}
		}
		return requested, nil
	}
	declared := fromUnit
	if !fromDeclared {
		declared = toUnit
	}
	unit, err := NewUnitOfMeasure(declared)
	if err != nil {
		return UnitOfMeasure{}, WrapError(operationService, subjectBucket, codeInvalid, err)
	}
	return unit, nil
}

// Reserve allocates available stock. The guarded increment rejects the
// reservation when a concurrent caller took the stock first.
func (service *Service) Reserve(ctx context.Context, request StockRequest) (Snapshot, error) {
	var snapshot Snapshot
	operationError := func() error {
		if err := requirePositive(request.Quantity); err != nil {
			return err
		}
		bucket, err := service.resolveBucket(ctx, request.StockLocator)
		if err != nil {
			return err
		}
		amount := request.Quantity.Decimal()
		current, err := service.store.ReadSnapshot(ctx, bucket)
		if err != nil {
			return err
		}
		if current.Available.LessThan(amount) {
			return insufficientStock(subjectReservation, bucket, amount, current.Available)
		}
		snapshot, err = service.store.IncrementReserved(ctx, bucket, amount, GuardNonNegative)
		if errors.Is(err, ErrGuardRejected) {
			return WrapError(operationService, subjectReservation, codeInsufficient, fmt.Errorf("%w: bucket %s cannot reserve %s: %w", ErrInsufficientStock, bucket, amount, err))
		}
		return err
	}()
	service.logStockRequest(ctx, OperationReserve, "", request, operationError)
	if operationError != nil {
		return Snapshot{}, operationError
	}
	return snapshot, nil
}

// Release returns reserved stock to available. Releasing more than is
// reserved leaves reserved at zero.
func (service *Service) Release(ctx context.Context, request StockRequest) (Snapshot, error) {
	var snapshot Snapshot
	operationError := func() error {
		if err := requirePositive(request.Quantity); err != nil {
			return err
		}
		bucket, err := service.resolveBucket(ctx, request.StockLocator)
		if err != nil {
			return err
		}
		snapshot, err = service.store.IncrementReserved(ctx, bucket, request.Quantity.Decimal().Neg(), Unguarded)
		return err
	}()
	service.logStockRequest(ctx, OperationRelease, "", request, operationError)
	if operationError != nil {
		return Snapshot{}, operationError
	}
	return snapshot, nil
}

// IssueAll issues from several buckets as one all-or-nothing movement.
// Requests for the same bucket are merged. Every bucket is checked before
// anything is written; a guarded write that still loses a race fails the
// whole call with ErrConcurrentModification.
func (service *Service) IssueAll(ctx context.Context, requests []StockRequest) ([]MovementResult, error) {
	var results []MovementResult
	operationError := func() error {
		if len(requests) == 0 {
			return WrapError(operationService, subjectMovement, codeInvalid, fmt.Errorf("%w: no lines", ErrInvalidMovementRequest))
		}
		plans, err := service.mergeIssuePlans(ctx, requests)
		if err != nil {
			return err
		}
		return service.runUnitOfWork(ctx, func(ctx context.Context, work *unitOfWork) error {
			for _, plan := range plans {
				if err := work.precheckOnHand(ctx, plan.bucket, plan.quantity.Abs().Decimal()); err != nil {
					return err
				}
			}
			collected := make([]MovementResult, 0, len(plans))
			for _, plan := range plans {
				result, err := work.post(ctx, plan)
				if err != nil {
					return err
				}
				collected = append(collected, result)
			}
			results = collected
			return nil
		})
	}()
	entry := OperationLog{Operation: OperationIssueAll, Kind: MovementIssue, Error: operationError}
	if len(requests) > 0 {
		entry.CompanyID = requests[0].CompanyID
		entry.Actor = requests[0].Actor
		entry.Reference = requests[0].Reference
	}
	for _, request := range requests {
		entry.Quantity = entry.Quantity.Add(request.Quantity.Decimal())
	}
	service.logOperation(ctx, entry)
	if operationError != nil {
		return nil, operationError
	}
	return results, nil
}

func (service *Service) mergeIssuePlans(ctx context.Context, requests []StockRequest) ([]movementPlan, error) {
	createdAt := service.now()
	indexByBucket := make(map[Bucket]int, len(requests))
	plans := make([]movementPlan, 0, len(requests))
	for _, request := range requests {
		if err := requirePositive(request.Quantity); err != nil {
			return nil, err
		}
		bucket, err := service.resolveBucket(ctx, request.StockLocator)
		if err != nil {
			return nil, err
		}
		if index, seen := indexByBucket[bucket]; seen {
			merged := plans[index].quantity.Decimal().Sub(request.Quantity.Decimal())
			plans[index].quantity = Quantity{value: merged}
			continue
		}
		indexByBucket[bucket] = len(plans)
		plans = append(plans, movementPlan{
			bucket:             bucket,
			quantity:           request.Quantity.Negated(),
			kind:               MovementIssue,
			reference:          request.Reference,
			note:               request.Note,
			actor:              request.Actor,
			effectiveAt:        request.EffectiveAt,
			createdAt:          createdAt,
			enforceNonNegative: true,
			skipPrecheck:       true,
			guardFailure:       ErrConcurrentModification,
		})
	}
	return plans, nil
}

func defaultReference(reference Reference, referenceType string) Reference {
	if reference.Type == "" {
		reference.Type = referenceType
	}
	return reference
}
