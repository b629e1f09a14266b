package inventory

import (
	"context"
	"fmt"
	"time"
)

// Service contains the movement logic over a Store and a Catalog.
type Service struct {
	store           Store
	catalog         Catalog
	nowFn           func() time.Time
	loggers         []OperationLogger
	strictAtomicity bool
	transactional   bool
}

// NewService wires a Service. The execution strategy is fixed here from the
// store's capabilities and never re-evaluated per call.
func NewService(store Store, catalog Catalog, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, catalog: catalog, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	service.transactional = store.SupportsMultiDocumentTransactions()
	if service.strictAtomicity && !service.transactional {
		return nil, WrapError(operationStartup, subjectTransactions, codeUnsupported, ErrTransactionUnsupported)
	}
	return service, nil
}

// Transactional reports whether movements run inside store transactions.
func (service *Service) Transactional() bool {
	return service.transactional
}

func (service *Service) strategyName() string {
	if service.transactional {
		return StrategyTransactional
	}
	return StrategySaga
}

// PostMovement appends one ledger line and applies it to the bucket snapshot
// as a single unit of work.
func (service *Service) PostMovement(ctx context.Context, input MovementInput) (MovementResult, error) {
	var result MovementResult
	operationError := service.runUnitOfWork(ctx, func(ctx context.Context, work *unitOfWork) error {
		var err error
		result, err = work.post(ctx, movementPlan{
			bucket:             input.Bucket,
			quantity:           input.Quantity,
			kind:               input.Kind,
			reference:          input.Reference,
			note:               input.Note,
			actor:              input.Actor,
			effectiveAt:        input.EffectiveAt,
			createdAt:          service.now(),
			enforceNonNegative: !input.AllowNegative,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:   OperationPostMovement,
		CompanyID:   input.Bucket.CompanyID(),
		ItemID:      input.Bucket.ItemID(),
		WarehouseID: input.Bucket.WarehouseID(),
		Kind:        input.Kind,
		Quantity:    input.Quantity.Decimal(),
		Actor:       input.Actor,
		Reference:   input.Reference,
		Error:       operationError,
	})
	if operationError != nil {
		return MovementResult{}, operationError
	}
	return result, nil
}

// Receive adds stock to a bucket.
func (service *Service) Receive(ctx context.Context, request StockRequest) (MovementResult, error) {
	if err := requirePositive(request.Quantity); err != nil {
		service.logStockRequest(ctx, OperationReceive, MovementReceipt, request, err)
		return MovementResult{}, err
	}
	return service.postStock(ctx, OperationReceive, MovementReceipt, request, request.Quantity, true)
}

// Issue removes stock from a bucket, never below zero.
func (service *Service) Issue(ctx context.Context, request StockRequest) (MovementResult, error) {
	if err := requirePositive(request.Quantity); err != nil {
		service.logStockRequest(ctx, OperationIssue, MovementIssue, request, err)
		return MovementResult{}, err
	}
	return service.postStock(ctx, OperationIssue, MovementIssue, request, request.Quantity.Negated(), true)
}

// Adjust applies a signed correction. enforceNonNegative=false lets a count
// correction drive on-hand below zero.
func (service *Service) Adjust(ctx context.Context, request StockRequest, enforceNonNegative bool) (MovementResult, error) {
	if request.Quantity.IsZero() {
		err := WrapError(operationService, subjectMovement, codeInvalid, fmt.Errorf("%w: must not be zero", ErrInvalidQuantity))
		service.logStockRequest(ctx, OperationAdjust, MovementAdjust, request, err)
		return MovementResult{}, err
	}
	return service.postStock(ctx, OperationAdjust, MovementAdjust, request, request.Quantity, enforceNonNegative)
}

func (service *Service) postStock(ctx context.Context, operation string, kind MovementKind, request StockRequest, quantity Quantity, enforceNonNegative bool) (MovementResult, error) {
	var result MovementResult
	operationError := func() error {
		bucket, err := service.resolveBucket(ctx, request.StockLocator)
		if err != nil {
			return err
		}
		return service.runUnitOfWork(ctx, func(ctx context.Context, work *unitOfWork) error {
			var err error
			result, err = work.post(ctx, movementPlan{
				bucket:             bucket,
				quantity:           quantity,
				kind:               kind,
				reference:          request.Reference,
				note:               request.Note,
				actor:              request.Actor,
				effectiveAt:        request.EffectiveAt,
				createdAt:          service.now(),
				enforceNonNegative: enforceNonNegative,
			})
			return err
		})
	}()
	service.logStockRequest(ctx, operation, kind, request, operationError)
	if operationError != nil {
		return MovementResult{}, operationError
	}
	return result, nil
}

func (service *Service) logStockRequest(ctx context.Context, operation string, kind MovementKind, request StockRequest, err error) {
	service.logOperation(ctx, OperationLog{
		Operation:   operation,
		CompanyID:   request.CompanyID,
		ItemID:      request.ItemID,
		WarehouseID: request.WarehouseID,
		Kind:        kind,
		Quantity:    request.Quantity.Decimal(),
		Actor:       request.Actor,
		Reference:   request.Reference,
		Error:       err,
	})
}

// resolveBucket checks the referenced item and warehouse exist and fills in
// the item's product type.
func (service *Service) resolveBucket(ctx context.Context, locator StockLocator) (Bucket, error) {
	if err := validateLocator(locator); err != nil {
		return Bucket{}, err
	}
	item, err := service.catalog.LookupItem(ctx, locator.CompanyID, locator.ItemID)
	if err != nil {
		return Bucket{}, err
	}
	if err := service.catalog.LookupWarehouse(ctx, locator.CompanyID, locator.WarehouseID); err != nil {
		return Bucket{}, err
	}
	bucket, err := NewBucket(locator.CompanyID, locator.ItemID, item.ProductTypeID, locator.WarehouseID, locator.Unit, locator.Bin, locator.BatchNo)
	if err != nil {
		return Bucket{}, WrapError(operationService, subjectBucket, codeInvalid, err)
	}
	return bucket, nil
}

func validateLocator(locator StockLocator) error {
	var err error
	switch {
	case locator.CompanyID.IsZero():
		err = ErrInvalidCompanyID
	case locator.ItemID.IsZero():
		err = ErrInvalidItemID
	case locator.WarehouseID.IsZero():
		err = ErrInvalidWarehouseID
	case locator.Unit.IsZero():
		err = ErrInvalidUnit
	}
	if err != nil {
		return WrapError(operationService, subjectBucket, codeInvalid, fmt.Errorf("%w: %w", ErrInvalidBucket, err))
	}
	return nil
}

func requirePositive(quantity Quantity) error {
	if quantity.Decimal().IsPositive() {
		return nil
	}
	return WrapError(operationService, subjectMovement, codeInvalid, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity))
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}
