package consumption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/shopspring/decimal"
)

const (
	errorOperationConsumption = "consumption"
	errorSubjectBatch         = "batch"
	errorSubjectStock         = "stock"
	errorCodeInvalid          = "invalid"
	errorCodeCheck            = "check"
	errorCodeCreate           = "create"
	errorCodeIssue            = "issue"
	errorCodeCompensate       = "compensate"
)

// StockOperations is the slice of inventory.Service the consumer relies on.
type StockOperations interface {
	Snapshot(ctx context.Context, locator inventory.StockLocator) (inventory.Snapshot, error)
	IssueAll(ctx context.Context, requests []inventory.StockRequest) ([]inventory.MovementResult, error)
}

// Service records production batches and draws their raw materials from stock.
type Service struct {
	stock   StockOperations
	batches BatchStore
	nowFn   func() time.Time
}

// NewService wires the consumer to its collaborators.
func NewService(stock StockOperations, batches BatchStore, now func() time.Time) (*Service, error) {
	if stock == nil || batches == nil {
		return nil, fmt.Errorf("%w: stock and batch store are required", inventory.ErrInvalidServiceConfig)
	}
	if now == nil {
		now = time.Now
	}
	return &Service{stock: stock, batches: batches, nowFn: now}, nil
}

// requirement is the aggregated draw on one bucket.
type requirement struct {
	locator inventory.StockLocator
	grams   decimal.Decimal
	needed  decimal.Decimal
}

// RecordBatch checks every bucket, records the batch and issues all of its
// materials together. When the issue fails the batch record is deleted again.
func (service *Service) RecordBatch(ctx context.Context, request BatchRequest) (Batch, []inventory.MovementResult, error) {
	batch, requirements, err := service.plan(request)
	if err != nil {
		return Batch{}, nil, inventory.WrapError(errorOperationConsumption, errorSubjectBatch, errorCodeInvalid, err)
	}
	if err := service.checkAvailability(ctx, requirements); err != nil {
		return Batch{}, nil, err
	}
	created, err := service.batches.CreateBatch(ctx, batch)
	if err != nil {
		return Batch{}, nil, inventory.WrapError(errorOperationConsumption, errorSubjectBatch, errorCodeCreate, err)
	}
	reference, err := inventory.NewReference(ReferenceTypeProductionBatch, created.Code)
	if err != nil {
		return Batch{}, nil, inventory.WrapError(errorOperationConsumption, errorSubjectBatch, errorCodeInvalid, err)
	}
	issues := make([]inventory.StockRequest, 0, len(requirements))
	for _, required := range requirements {
		quantity, err := inventory.NewPositiveQuantity(required.needed)
		if err != nil {
			return Batch{}, nil, service.compensate(ctx, created, err)
		}
		issues = append(issues, inventory.StockRequest{
			StockLocator: required.locator,
			Quantity:     quantity,
			Actor:        created.Actor,
			Note:         "production batch " + created.Code,
			Reference:    reference,
			EffectiveAt:  created.ProducedAt,
		})
	}
	results, err := service.stock.IssueAll(ctx, issues)
	if err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			err = fmt.Errorf("%w: %w", inventory.ErrConcurrentModification, err)
		}
		return Batch{}, nil, service.compensate(ctx, created, inventory.WrapError(errorOperationConsumption, errorSubjectStock, errorCodeIssue, err))
	}
	return created, results, nil
}

func (service *Service) plan(request BatchRequest) (Batch, []requirement, error) {
	code := strings.TrimSpace(request.Code)
	if code == "" {
		return Batch{}, nil, fmt.Errorf("%w: code is required", ErrInvalidBatch)
	}
	if request.CompanyID.IsZero() {
		return Batch{}, nil, inventory.ErrInvalidCompanyID
	}
	if request.Actor.String() == "" {
		return Batch{}, nil, inventory.ErrInvalidActorID
	}
	if len(request.Lines) == 0 {
		return Batch{}, nil, fmt.Errorf("%w: at least one line is required", ErrInvalidBatch)
	}
	multiplier := request.Multiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	if multiplier.IsNegative() {
		return Batch{}, nil, fmt.Errorf("%w: multiplier %s is negative", ErrInvalidBatch, multiplier)
	}
	if !multiplier.Equal(multiplier.Truncate(inventory.QuantityScale)) {
		return Batch{}, nil, fmt.Errorf("%w: multiplier %s has more than %d decimal places", ErrInvalidBatch, multiplier, inventory.QuantityScale)
	}

	indexByLocator := make(map[inventory.StockLocator]int, len(request.Lines))
	requirements := make([]requirement, 0, len(request.Lines))
	lines := make([]Line, 0, len(request.Lines))
	total := decimal.Zero
	for index, line := range request.Lines {
		if line.ItemID.IsZero() || line.WarehouseID.IsZero() || line.StockUnit.IsZero() {
			return Batch{}, nil, fmt.Errorf("%w: line %d needs item, warehouse and stock unit", ErrInvalidBatchLine, index+1)
		}
		if !line.Quantity.IsPositive() {
			return Batch{}, nil, fmt.Errorf("%w: line %d: %w", ErrInvalidBatchLine, index+1, inventory.ErrInvalidQuantity)
		}
		if strings.TrimSpace(line.Unit) == "" {
			line.Unit = DefaultLineUnit
		}
		grams, err := ToGrams(line.Quantity, line.Unit)
		if err != nil {
			return Batch{}, nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		if _, err := GramsPerUnit(line.StockUnit.String()); err != nil {
			return Batch{}, nil, fmt.Errorf("line %d stock unit: %w", index+1, err)
		}
		grams = grams.Mul(multiplier)
		total = total.Add(grams)
		lines = append(lines, line)

		locator := inventory.StockLocator{
			CompanyID:   request.CompanyID,
			ItemID:      line.ItemID,
			WarehouseID: line.WarehouseID,
			Unit:        line.StockUnit,
			Bin:         line.Bin,
			BatchNo:     line.BatchNo,
		}
		if position, seen := indexByLocator[locator]; seen {
			requirements[position].grams = requirements[position].grams.Add(grams)
			continue
		}
		indexByLocator[locator] = len(requirements)
		requirements = append(requirements, requirement{locator: locator, grams: grams})
	}
	if !total.IsPositive() {
		return Batch{}, nil, fmt.Errorf("%w: total weight must be positive", ErrInvalidBatch)
	}
	for index := range requirements {
		needed, err := Convert(requirements[index].grams, "g", requirements[index].locator.Unit.String())
		if err != nil {
			return Batch{}, nil, err
		}
		if !needed.IsPositive() {
			return Batch{}, nil, fmt.Errorf("%w: %s g of %s rounds to zero %s", ErrInvalidBatchLine,
				requirements[index].grams, requirements[index].locator.ItemID, requirements[index].locator.Unit)
		}
		requirements[index].needed = needed
	}

	now := service.nowFn().UTC()
	producedAt := request.ProducedAt
	if producedAt.IsZero() {
		producedAt = now
	}
	return Batch{
		CompanyID:  request.CompanyID,
		Code:       code,
		Multiplier: multiplier,
		TotalGrams: total.Round(inventory.QuantityScale),
		Lines:      lines,
		Actor:      request.Actor,
		ProducedAt: producedAt.UTC(),
		CreatedAt:  now,
	}, requirements, nil
}

// checkAvailability fails without side effects when any bucket is short.
func (service *Service) checkAvailability(ctx context.Context, requirements []requirement) error {
	for _, required := range requirements {
		snapshot, err := service.stock.Snapshot(ctx, required.locator)
		if err != nil {
			return inventory.WrapError(errorOperationConsumption, errorSubjectStock, errorCodeCheck, err)
		}
		if snapshot.OnHand.LessThan(required.needed) {
			unit := required.locator.Unit.String()
			return inventory.WrapError(errorOperationConsumption, errorSubjectStock, errorCodeCheck,
				fmt.Errorf("%w: %s in %s: required %s %s, available %s %s",
					inventory.ErrInsufficientStock,
					required.locator.ItemID, required.locator.WarehouseID,
					required.needed.String(), unit, snapshot.OnHand.String(), unit))
		}
	}
	return nil
}

func (service *Service) compensate(ctx context.Context, batch Batch, cause error) error {
	if err := service.batches.DeleteBatch(context.WithoutCancel(ctx), batch.BatchID); err != nil {
		return errors.Join(cause, inventory.WrapError(errorOperationConsumption, errorSubjectBatch, errorCodeCompensate,
			fmt.Errorf("%w: %w", inventory.ErrCompensationFailed, err)))
	}
	return cause
}
