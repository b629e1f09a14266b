package gormstore

import (
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// settingLedgerOverride marks a statement as an administrative ledger change.
const settingLedgerOverride = "stockledger:ledger_override"

// LedgerEntry mirrors the inventory_ledger table. Rows are append-only.
type LedgerEntry struct {
	EntryID       string          `gorm:"type:varchar(36);primaryKey"`
	BucketKey     string          `gorm:"type:varchar(512);not null;index:idx_inventory_ledger_bucket_effective,priority:1"`
	CompanyID     string          `gorm:"not null;index:idx_inventory_ledger_company_effective,priority:1;index:idx_inventory_ledger_company_kind,priority:1"`
	ItemID        string          `gorm:"not null"`
	ProductTypeID string          `gorm:"not null"`
	WarehouseID   string          `gorm:"not null"`
	Bin           *string         `gorm:""`
	BatchNo       *string         `gorm:""`
	Unit          string          `gorm:"not null"`
	Quantity      decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Kind          string          `gorm:"type:varchar(16);not null;index:idx_inventory_ledger_company_kind,priority:2"`
	ReferenceType *string         `gorm:"index:idx_inventory_ledger_reference,priority:1"`
	ReferenceID   *string         `gorm:"index:idx_inventory_ledger_reference,priority:2"`
	Note          string          `gorm:"not null;default:''"`
	ActorID       string          `gorm:"not null"`
	EffectiveAt   time.Time       `gorm:"not null;index:idx_inventory_ledger_bucket_effective,priority:2;index:idx_inventory_ledger_company_effective,priority:2;index:idx_inventory_ledger_company_kind,priority:3"`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "inventory_ledger" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects updates that do not carry the administrative override.
func (entry *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return guardLedgerMutation(tx)
}

// BeforeDelete rejects deletes that do not carry the administrative override.
func (entry *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return guardLedgerMutation(tx)
}

func guardLedgerMutation(tx *gorm.DB) error {
	if granted, ok := tx.Get(settingLedgerOverride); ok {
		if value, isBool := granted.(bool); isBool && value {
			return nil
		}
	}
	return inventory.ErrLedgerImmutable
}

// Snapshot mirrors the inventory_snapshots table: one row per bucket.
// Available is stored for indexing and rewritten by every counter update.
type Snapshot struct {
	BucketKey     string          `gorm:"type:varchar(512);primaryKey"`
	CompanyID     string          `gorm:"not null;index:idx_inventory_snapshot_lookup,priority:1;index:idx_inventory_snapshot_available,priority:1"`
	ItemID        string          `gorm:"not null;index:idx_inventory_snapshot_lookup,priority:2;index:idx_inventory_snapshot_available,priority:2"`
	ProductTypeID string          `gorm:"not null"`
	WarehouseID   string          `gorm:"not null;index:idx_inventory_snapshot_lookup,priority:3"`
	Bin           *string         `gorm:""`
	BatchNo       *string         `gorm:""`
	Unit          string          `gorm:"not null"`
	OnHand        decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Reserved      decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Available     decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0;index:idx_inventory_snapshot_available,priority:3"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (Snapshot) TableName() string { return "inventory_snapshots" }

// Item mirrors the inventory_items catalog table.
type Item struct {
	CompanyID     string    `gorm:"primaryKey"`
	ItemID        string    `gorm:"primaryKey"`
	ProductTypeID string    `gorm:"not null"`
	Unit          *string   `gorm:""`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Item) TableName() string { return "inventory_items" }

// Warehouse mirrors the inventory_warehouses catalog table.
type Warehouse struct {
	CompanyID   string    `gorm:"primaryKey"`
	WarehouseID string    `gorm:"primaryKey"`
	Name        string    `gorm:"not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Warehouse) TableName() string { return "inventory_warehouses" }

// ProductionBatch mirrors the production_batches table. Lines keep the
// consumed materials as submitted.
type ProductionBatch struct {
	BatchID    string          `gorm:"type:varchar(36);primaryKey"`
	CompanyID  string          `gorm:"not null;index:idx_production_batches_code,unique,priority:1"`
	Code       string          `gorm:"not null;index:idx_production_batches_code,unique,priority:2"`
	Multiplier decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	TotalGrams decimal.Decimal `gorm:"type:numeric(24,6);not null"`
	Lines      datatypes.JSON  `gorm:"not null"`
	ActorID    string          `gorm:"not null"`
	ProducedAt time.Time       `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (ProductionBatch) TableName() string { return "production_batches" }

func (batch *ProductionBatch) BeforeCreate(tx *gorm.DB) error {
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	return nil
}

// Models lists every table managed by this store, in migration order.
func Models() []interface{} {
	return []interface{}{&Item{}, &Warehouse{}, &LedgerEntry{}, &Snapshot{}, &ProductionBatch{}}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
