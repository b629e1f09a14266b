package inventory

import "time"

// StockLocator names a bucket by the caller-visible coordinates. The product
// type is resolved from the catalog.
type StockLocator struct {
	CompanyID   CompanyID
	ItemID      ItemID
	WarehouseID WarehouseID
	Unit        UnitOfMeasure
	Bin         Dimension
	BatchNo     Dimension
}

// StockRequest is the input of the single-bucket convenience operations.
// Quantity is a magnitude except for Adjust, where its sign is the direction.
type StockRequest struct {
	StockLocator
	Quantity    Quantity
	Actor       ActorID
	Note        string
	Reference   Reference
	EffectiveAt time.Time
}

// MovementInput is the orchestrator input. AllowNegative disables the
// non-negative check, which is enforced by default.
type MovementInput struct {
	Bucket        Bucket
	Quantity      Quantity
	Kind          MovementKind
	Actor         ActorID
	Note          string
	Reference     Reference
	EffectiveAt   time.Time
	AllowNegative bool
}

// TransferRequest moves stock of one item between warehouses.
type TransferRequest struct {
	CompanyID       CompanyID
	ItemID          ItemID
	FromWarehouseID WarehouseID
	ToWarehouseID   WarehouseID
	Unit            UnitOfMeasure
	Bin             Dimension
	BatchNo         Dimension
	Quantity        Quantity
	Actor           ActorID
	Note            string
	Reference       Reference
	EffectiveAt     time.Time
}

// TransferResult carries both legs of a transfer.
type TransferResult struct {
	Out MovementResult
	In  MovementResult
}

// RepackRequest converts stock of one item into another item of the same
// product type. Unit may be left zero when both items declare the same unit.
type RepackRequest struct {
	CompanyID   CompanyID
	FromItemID  ItemID
	ToItemID    ItemID
	WarehouseID WarehouseID
	Unit        UnitOfMeasure
	Bin         Dimension
	BatchNo     Dimension
	Quantity    Quantity
	Actor       ActorID
	Note        string
	Reference   Reference
	EffectiveAt time.Time
}

// RepackResult carries both legs of a repack.
type RepackResult struct {
	Out MovementResult
	In  MovementResult
}
