package consumption

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/shopspring/decimal"
)

// ReferenceTypeProductionBatch tags the ledger rows written for a batch.
const ReferenceTypeProductionBatch = "PRODUCTION_BATCH"

var (
	ErrUnknownUnit      = errors.New("unknown mass unit")
	ErrInvalidBatch     = errors.New("invalid production batch")
	ErrDuplicateBatch   = errors.New("production batch already recorded")
	ErrBatchNotFound    = errors.New("production batch not found")
	ErrInvalidBatchLine = errors.New("invalid production batch line")
)

// Line is one raw material consumed by a batch. StockUnit is the unit of the
// bucket the material is drawn from; Unit is the unit Quantity is given in.
type Line struct {
	ItemID      inventory.ItemID
	WarehouseID inventory.WarehouseID
	Bin         inventory.Dimension
	BatchNo     inventory.Dimension
	StockUnit   inventory.UnitOfMeasure
	Quantity    decimal.Decimal
	Unit        string
}

// BatchRequest records a production batch. Multiplier scales every line and
// defaults to one.
type BatchRequest struct {
	CompanyID  inventory.CompanyID
	Code       string
	Actor      inventory.ActorID
	Multiplier decimal.Decimal
	ProducedAt time.Time
	Lines      []Line
}

// Batch is a recorded production batch.
type Batch struct {
	BatchID    string
	CompanyID  inventory.CompanyID
	Code       string
	Multiplier decimal.Decimal
	TotalGrams decimal.Decimal
	Lines      []Line
	Actor      inventory.ActorID
	ProducedAt time.Time
	CreatedAt  time.Time
}

// BatchStore persists the parent batch record.
type BatchStore interface {
	// CreateBatch fails with ErrDuplicateBatch when the company already has
	// a batch with the same code.
	CreateBatch(ctx context.Context, batch Batch) (Batch, error)
	DeleteBatch(ctx context.Context, batchID string) error
	GetBatch(ctx context.Context, companyID inventory.CompanyID, code string) (Batch, error)
}

type lineRecord struct {
	ItemID      string          `json:"itemId"`
	WarehouseID string          `json:"warehouseId"`
	Bin         *string         `json:"bin,omitempty"`
	BatchNo     *string         `json:"batchNo,omitempty"`
	StockUnit   string          `json:"stockUnit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

// EncodeLines serializes batch lines for storage.
func EncodeLines(lines []Line) ([]byte, error) {
	records := make([]lineRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, lineRecord{
			ItemID:      line.ItemID.String(),
			WarehouseID: line.WarehouseID.String(),
			Bin:         line.Bin.Pointer(),
			BatchNo:     line.BatchNo.Pointer(),
			StockUnit:   line.StockUnit.String(),
			Quantity:    line.Quantity,
			Unit:        line.Unit,
		})
	}
	return json.Marshal(records)
}

// DecodeLines is the inverse of EncodeLines.
func DecodeLines(raw []byte) ([]Line, error) {
	var records []lineRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(records))
	for _, record := range records {
		itemID, err := inventory.NewItemID(record.ItemID)
		if err != nil {
			return nil, err
		}
		warehouseID, err := inventory.NewWarehouseID(record.WarehouseID)
		if err != nil {
			return nil, err
		}
		stockUnit, err := inventory.NewUnitOfMeasure(record.StockUnit)
		if err != nil {
			return nil, err
		}
		bin, err := inventory.DimensionFromPointer(record.Bin)
		if err != nil {
			return nil, err
		}
		batchNo, err := inventory.DimensionFromPointer(record.BatchNo)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			ItemID:      itemID,
			WarehouseID: warehouseID,
			Bin:         bin,
			BatchNo:     batchNo,
			StockUnit:   stockUnit,
			Quantity:    record.Quantity,
			Unit:        record.Unit,
		})
	}
	return lines, nil
}
