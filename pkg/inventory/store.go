package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLedgerLimit = 100
	MaxLedgerLimit     = 1000
)

// StorageCapabilities tells the service how much atomicity a store offers.
type StorageCapabilities interface {
	SupportsMultiDocumentTransactions() bool
}

// Store is the persistence contract used by Service: the append-only ledger
// plus the per-bucket snapshot.
type Store interface {
	StorageCapabilities
	// WithTx runs fn inside one transaction. Stores without transactions
	// return ErrTransactionUnsupported.
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	RecordEntry(ctx context.Context, entry EntryInput) (LedgerEntry, error)
	ListEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	AmendEntry(ctx context.Context, entryID EntryID, note string, override AdministrativeOverride) error
	RemoveEntry(ctx context.Context, entryID EntryID, override AdministrativeOverride) error
	SumEntriesByBucket(ctx context.Context, companyID CompanyID) ([]BucketTotal, error)

	// IncrementOnHand adds delta to on-hand. Guarded decreases fail with
	// ErrGuardRejected instead of going below zero.
	IncrementOnHand(ctx context.Context, bucket Bucket, delta decimal.Decimal, guard Guard) (Snapshot, error)
	// IncrementReserved adds delta to reserved. Guarded increases fail with
	// ErrGuardRejected when available would go below zero; decreases clamp at zero.
	IncrementReserved(ctx context.Context, bucket Bucket, delta decimal.Decimal, guard Guard) (Snapshot, error)
	// ReadSnapshot returns ZeroSnapshot when the bucket has no row.
	ReadSnapshot(ctx context.Context, bucket Bucket) (Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error)
}

// Catalog resolves item and warehouse master data owned by another system.
type Catalog interface {
	LookupItem(ctx context.Context, companyID CompanyID, itemID ItemID) (Item, error)
	LookupWarehouse(ctx context.Context, companyID CompanyID, warehouseID WarehouseID) error
}

// DimensionFilter is a tri-state match on an optional bucket coordinate.
type DimensionFilter struct {
	set   bool
	value Dimension
}

// AnyDimension matches every bucket.
func AnyDimension() DimensionFilter {
	return DimensionFilter{}
}

// MatchDimension matches exactly the given dimension, including absent.
func MatchDimension(dimension Dimension) DimensionFilter {
	return DimensionFilter{set: true, value: dimension}
}

// Match returns the dimension to compare against and whether filtering applies.
func (filter DimensionFilter) Match() (Dimension, bool) {
	return filter.value, filter.set
}

// SortOrder orders ledger reads by effective time.
type SortOrder string

const (
	SortDescending SortOrder = "desc"
	SortAscending  SortOrder = "asc"
)

// LedgerFilter narrows ledger reads. CompanyID is required.
type LedgerFilter struct {
	CompanyID     CompanyID
	ItemID        ItemID
	ProductTypeID ProductTypeID
	WarehouseID   WarehouseID
	Unit          UnitOfMeasure
	Bin           DimensionFilter
	BatchNo       DimensionFilter
	Kind          MovementKind
	ReferenceType string
	ReferenceID   string
	From          time.Time
	To            time.Time
	Limit         int
	Order         SortOrder
}

// Normalize validates the filter and fills defaults.
func (filter LedgerFilter) Normalize() (LedgerFilter, error) {
	if filter.CompanyID.IsZero() {
		return LedgerFilter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, ErrInvalidCompanyID)
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return LedgerFilter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, ErrInvalidMovementKind)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return LedgerFilter{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidFilter)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultLedgerLimit
	case filter.Limit > MaxLedgerLimit:
		filter.Limit = MaxLedgerLimit
	}
	switch SortOrder(strings.ToLower(string(filter.Order))) {
	case "", SortDescending:
		filter.Order = SortDescending
	case SortAscending:
		filter.Order = SortAscending
	default:
		return LedgerFilter{}, fmt.Errorf("%w: unknown order %q", ErrInvalidFilter, filter.Order)
	}
	filter.ReferenceType = strings.TrimSpace(filter.ReferenceType)
	filter.ReferenceID = strings.TrimSpace(filter.ReferenceID)
	return filter, nil
}

// SnapshotFilter narrows snapshot reads. CompanyID is required.
type SnapshotFilter struct {
	CompanyID     CompanyID
	ItemID        ItemID
	ProductTypeID ProductTypeID
	WarehouseID   WarehouseID
	Unit          UnitOfMeasure
	Bin           DimensionFilter
	BatchNo       DimensionFilter
}

// Validate checks the required company scope.
func (filter SnapshotFilter) Validate() error {
	if filter.CompanyID.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, ErrInvalidCompanyID)
	}
	return nil
}

// TransactionMode is the configured stance on multi-document transactions.
type TransactionMode string

const (
	TransactionModeAuto     TransactionMode = "auto"
	TransactionModeRequired TransactionMode = "required"
	TransactionModeDisabled TransactionMode = "disabled"
)

// ParseTransactionMode validates a configured mode; empty means auto.
func ParseTransactionMode(raw string) (TransactionMode, error) {
	mode := TransactionMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return TransactionModeAuto, nil
	case TransactionModeAuto, TransactionModeRequired, TransactionModeDisabled:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionMode, raw)
	}
}

// ResolveTransactionSupport decides once, at startup, whether the store runs
// in transactional mode. probe reports whether the backend accepted a
// transaction.
func ResolveTransactionSupport(ctx context.Context, mode TransactionMode, probe func(ctx context.Context) error) (bool, error) {
	switch mode {
	case TransactionModeDisabled:
		return false, nil
	case TransactionModeAuto, "":
		return probe(ctx) == nil, nil
	case TransactionModeRequired:
		if err := probe(ctx); err != nil {
			return false, WrapError(operationStartup, subjectTransactions, codeProbe, fmt.Errorf("%w: %w", ErrTransactionUnsupported, err))
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidTransactionMode, mode)
	}
}
