package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectEntry       = "entry"
	errorSubjectSnapshot    = "snapshot"
	errorSubjectTransaction = "transaction"
	errorCodeAmend          = "amend"
	errorCodeGuard          = "guard"
	errorCodeIncrement      = "increment"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeRead           = "read"
	errorCodeRemove         = "remove"
	errorCodeSum            = "sum"
	errorCodeUnsupported    = "unsupported"
	snapshotTable           = "inventory_snapshots"
)

// onGrid rounds a numeric SQL expression to the persisted quantity scale.
// SQLite keeps numeric columns as floating point, so every counter write and
// guard comparison is evaluated on the same decimal grid.
func onGrid(expression string) string {
	return fmt.Sprintf("round(%s, %d)", expression, inventory.QuantityScale)
}

// Store implements inventory.Store using GORM.
type Store struct {
	db            *gorm.DB
	transactional bool
	inTx          bool
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTransactions sets whether WithTx opens real transactions. A store
// built with false reports no multi-document support and the service falls
// back to compensations.
func WithTransactions(enabled bool) Option {
	return func(store *Store) {
		store.transactional = enabled
	}
}

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(store *Store) {
		if now != nil {
			store.now = now
		}
	}
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB, options ...Option) *Store {
	store := &Store{db: db, transactional: true, now: time.Now}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

func (store *Store) SupportsMultiDocumentTransactions() bool {
	return store.transactional
}

// ProbeTransactions opens and commits an empty transaction.
func (store *Store) ProbeTransactions(ctx context.Context) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return transaction.Exec("SELECT 1").Error
	})
}

// WithTx executes fn within a transaction. Nested calls join the outer one.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore inventory.Store) error) error {
	if !store.transactional {
		return wrapStoreError(errorSubjectTransaction, errorCodeUnsupported, inventory.ErrTransactionUnsupported)
	}
	if store.inTx {
		return fn(ctx, store)
	}
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, store.bound(transaction))
	})
}

func (store *Store) bound(transaction *gorm.DB) *Store {
	return &Store{db: transaction, transactional: store.transactional, inTx: true, now: store.now}
}

// atomically runs a single-bucket write and its read-back together when the
// backend allows it.
func (store *Store) atomically(ctx context.Context, fn func(db *gorm.DB) error) error {
	if store.inTx || !store.transactional {
		return fn(store.db.WithContext(ctx))
	}
	return store.db.WithContext(ctx).Transaction(fn)
}

func (store *Store) RecordEntry(ctx context.Context, entryInput inventory.EntryInput) (inventory.LedgerEntry, error) {
	bucket := entryInput.Bucket()
	reference := entryInput.Reference()
	row := LedgerEntry{
		BucketKey:     bucket.Key(),
		CompanyID:     bucket.CompanyID().String(),
		ItemID:        bucket.ItemID().String(),
		ProductTypeID: bucket.ProductTypeID().String(),
		WarehouseID:   bucket.WarehouseID().String(),
		Bin:           bucket.Bin().Pointer(),
		BatchNo:       bucket.BatchNo().Pointer(),
		Unit:          bucket.Unit().String(),
		Quantity:      entryInput.Quantity().Decimal(),
		Kind:          entryInput.Kind().String(),
		ReferenceType: optionalString(reference.Type),
		ReferenceID:   optionalString(reference.ID),
		Note:          entryInput.Note(),
		ActorID:       entryInput.Actor().String(),
		EffectiveAt:   entryInput.EffectiveAt(),
		CreatedAt:     entryInput.CreatedAt(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return inventory.LedgerEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entry, err := mapLedgerEntry(row)
	if err != nil {
		return inventory.LedgerEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entry, nil
}

func (store *Store) ListEntries(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error) {
	normalized, err := filter.Normalize()
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	query := store.db.WithContext(ctx).Model(&LedgerEntry{}).Where("company_id = ?", normalized.CompanyID.String())
	query = applyBucketFilter(query, normalized.ItemID, normalized.ProductTypeID, normalized.WarehouseID, normalized.Unit, normalized.Bin, normalized.BatchNo)
	if normalized.Kind != "" {
		query = query.Where("kind = ?", normalized.Kind.String())
	}
	if normalized.ReferenceType != "" {
		query = query.Where("reference_type = ?", normalized.ReferenceType)
	}
	if normalized.ReferenceID != "" {
		query = query.Where("reference_id = ?", normalized.ReferenceID)
	}
	if !normalized.From.IsZero() {
		query = query.Where("effective_at >= ?", normalized.From.UTC())
	}
	if !normalized.To.IsZero() {
		query = query.Where("effective_at <= ?", normalized.To.UTC())
	}
	direction := "DESC"
	if normalized.Order == inventory.SortAscending {
		direction = "ASC"
	}
	var rows []LedgerEntry
	err = query.
		Order(fmt.Sprintf("effective_at %s, created_at %s, entry_id %s", direction, direction, direction)).
		Limit(normalized.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]inventory.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLedgerEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) AmendEntry(ctx context.Context, entryID inventory.EntryID, note string, override inventory.AdministrativeOverride) error {
	if !override.Granted() {
		return wrapStoreError(errorSubjectEntry, errorCodeAmend, inventory.ErrLedgerImmutable)
	}
	result := store.db.WithContext(ctx).
		Set(settingLedgerOverride, true).
		Model(&LedgerEntry{}).
		Where("entry_id = ?", entryID.String()).
		Update("note", note)
	if result.Error != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeAmend, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectEntry, errorCodeAmend, inventory.ErrEntryNotFound)
	}
	return nil
}

func (store *Store) RemoveEntry(ctx context.Context, entryID inventory.EntryID, override inventory.AdministrativeOverride) error {
	if !override.Granted() {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, inventory.ErrLedgerImmutable)
	}
	result := store.db.WithContext(ctx).
		Set(settingLedgerOverride, true).
		Where("entry_id = ?", entryID.String()).
		Delete(&LedgerEntry{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, inventory.ErrEntryNotFound)
	}
	return nil
}

func (store *Store) SumEntriesByBucket(ctx context.Context, companyID inventory.CompanyID) ([]inventory.BucketTotal, error) {
	var sums []bucketSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit, "+onGrid("coalesce(sum(quantity),0)")+" as total").
		Where("company_id = ?", companyID.String()).
		Group("bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit").
		Scan(&sums).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeSum, err)
	}
	totals := make([]inventory.BucketTotal, 0, len(sums))
	for _, sum := range sums {
		bucket, err := inventory.ParseBucket(sum.CompanyID, sum.ItemID, sum.ProductTypeID, sum.WarehouseID, sum.Unit, sum.Bin, sum.BatchNo)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		totals = append(totals, inventory.BucketTotal{Bucket: bucket, Total: sum.Total.Round(inventory.QuantityScale)})
	}
	return totals, nil
}

func (store *Store) IncrementOnHand(ctx context.Context, bucket inventory.Bucket, delta decimal.Decimal, guard inventory.Guard) (inventory.Snapshot, error) {
	var snapshot inventory.Snapshot
	err := store.atomically(ctx, func(db *gorm.DB) error {
		now := store.now().UTC()
		if guard == inventory.GuardNonNegative && delta.IsNegative() {
			result := db.Model(&Snapshot{}).
				Where("bucket_key = ? AND "+onGrid("on_hand + ?")+" >= 0", bucket.Key(), delta).
				Updates(map[string]interface{}{
					"on_hand":    gorm.Expr(onGrid("on_hand + ?"), delta),
					"available":  gorm.Expr(onGrid("on_hand + ? - reserved"), delta),
					"updated_at": now,
				})
			if result.Error != nil {
				return wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, result.Error)
			}
			if result.RowsAffected == 0 {
				return wrapStoreError(errorSubjectSnapshot, errorCodeGuard, inventory.ErrGuardRejected)
			}
		} else {
			row := newSnapshotRow(bucket, now)
			row.OnHand = delta
			row.Available = delta
			err := db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "bucket_key"}},
				DoUpdates: clause.Set{
					{Column: clause.Column{Name: "on_hand"}, Value: gorm.Expr(onGrid(snapshotTable+".on_hand + ?"), delta)},
					{Column: clause.Column{Name: "available"}, Value: gorm.Expr(onGrid(snapshotTable+".on_hand + ? - "+snapshotTable+".reserved"), delta)},
					{Column: clause.Column{Name: "updated_at"}, Value: now},
				},
			}).Create(&row).Error
			if err != nil {
				return wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, err)
			}
		}
		read, err := readSnapshot(db, bucket)
		if err != nil {
			return err
		}
		snapshot = read
		return nil
	})
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return snapshot, nil
}

func (store *Store) IncrementReserved(ctx context.Context, bucket inventory.Bucket, delta decimal.Decimal, guard inventory.Guard) (inventory.Snapshot, error) {
	var snapshot inventory.Snapshot
	err := store.atomically(ctx, func(db *gorm.DB) error {
		now := store.now().UTC()
		switch {
		case guard == inventory.GuardNonNegative && delta.IsPositive():
			result := db.Model(&Snapshot{}).
				Where("bucket_key = ? AND "+onGrid("on_hand - reserved - ?")+" >= 0", bucket.Key(), delta).
				Updates(map[string]interface{}{
					"reserved":   gorm.Expr(onGrid("reserved + ?"), delta),
					"available":  gorm.Expr(onGrid("on_hand - reserved - ?"), delta),
					"updated_at": now,
				})
			if result.Error != nil {
				return wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, result.Error)
			}
			if result.RowsAffected == 0 {
				return wrapStoreError(errorSubjectSnapshot, errorCodeGuard, inventory.ErrGuardRejected)
			}
		default:
			initial := decimal.Max(delta, decimal.Zero)
			row := newSnapshotRow(bucket, now)
			row.Reserved = initial
			row.Available = initial.Neg()
			clamped := "CASE WHEN " + onGrid(snapshotTable+".reserved + ?") + " < 0 THEN 0 ELSE " + onGrid(snapshotTable+".reserved + ?") + " END"
			err := db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "bucket_key"}},
				DoUpdates: clause.Set{
					{Column: clause.Column{Name: "reserved"}, Value: gorm.Expr(clamped, delta, delta)},
					{Column: clause.Column{Name: "available"}, Value: gorm.Expr(onGrid(snapshotTable+".on_hand - "+clamped), delta, delta)},
					{Column: clause.Column{Name: "updated_at"}, Value: now},
				},
			}).Create(&row).Error
			if err != nil {
				return wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, err)
			}
		}
		read, err := readSnapshot(db, bucket)
		if err != nil {
			return err
		}
		snapshot = read
		return nil
	})
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return snapshot, nil
}

func (store *Store) ReadSnapshot(ctx context.Context, bucket inventory.Bucket) (inventory.Snapshot, error) {
	return readSnapshot(store.db.WithContext(ctx), bucket)
}

func (store *Store) ListSnapshots(ctx context.Context, filter inventory.SnapshotFilter) ([]inventory.Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, wrapStoreError(errorSubjectSnapshot, errorCodeList, err)
	}
	query := store.db.WithContext(ctx).Model(&Snapshot{}).Where("company_id = ?", filter.CompanyID.String())
	query = applyBucketFilter(query, filter.ItemID, filter.ProductTypeID, filter.WarehouseID, filter.Unit, filter.Bin, filter.BatchNo)
	var rows []Snapshot
	if err := query.Order("bucket_key ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectSnapshot, errorCodeList, err)
	}
	snapshots := make([]inventory.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := mapSnapshot(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSnapshot, errorCodeInvalid, err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func readSnapshot(db *gorm.DB, bucket inventory.Bucket) (inventory.Snapshot, error) {
	var row Snapshot
	err := db.Where("bucket_key = ?", bucket.Key()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inventory.ZeroSnapshot(bucket), nil
	}
	if err != nil {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeRead, err)
	}
	snapshot, err := mapSnapshot(row)
	if err != nil {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeInvalid, err)
	}
	return snapshot, nil
}

func applyBucketFilter(query *gorm.DB, itemID inventory.ItemID, productTypeID inventory.ProductTypeID, warehouseID inventory.WarehouseID, unit inventory.UnitOfMeasure, bin inventory.DimensionFilter, batchNo inventory.DimensionFilter) *gorm.DB {
	if !itemID.IsZero() {
		query = query.Where("item_id = ?", itemID.String())
	}
	if !productTypeID.IsZero() {
		query = query.Where("product_type_id = ?", productTypeID.String())
	}
	if !warehouseID.IsZero() {
		query = query.Where("warehouse_id = ?", warehouseID.String())
	}
	if !unit.IsZero() {
		query = query.Where("unit = ?", unit.String())
	}
	query = applyDimensionFilter(query, "bin", bin)
	return applyDimensionFilter(query, "batch_no", batchNo)
}

func applyDimensionFilter(query *gorm.DB, column string, filter inventory.DimensionFilter) *gorm.DB {
	dimension, set := filter.Match()
	if !set {
		return query
	}
	value, present := dimension.Value()
	if !present {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", value)
}

func newSnapshotRow(bucket inventory.Bucket, now time.Time) Snapshot {
	return Snapshot{
		BucketKey:     bucket.Key(),
		CompanyID:     bucket.CompanyID().String(),
		ItemID:        bucket.ItemID().String(),
		ProductTypeID: bucket.ProductTypeID().String(),
		WarehouseID:   bucket.WarehouseID().String(),
		Bin:           bucket.Bin().Pointer(),
		BatchNo:       bucket.BatchNo().Pointer(),
		Unit:          bucket.Unit().String(),
		OnHand:        decimal.Zero,
		Reserved:      decimal.Zero,
		Available:     decimal.Zero,
		UpdatedAt:     now,
	}
}

func wrapStoreError(subject string, code string, err error) error {
	return inventory.WrapError(errorOperationStore, subject, code, err)
}

type bucketSum struct {
	BucketKey     string
	CompanyID     string
	ItemID        string
	ProductTypeID string
	WarehouseID   string
	Bin           *string
	BatchNo       *string
	Unit          string
	Total         decimal.Decimal
}

func mapLedgerEntry(row LedgerEntry) (inventory.LedgerEntry, error) {
	entryID, err := inventory.NewEntryID(row.EntryID)
	if err != nil {
		return inventory.LedgerEntry{}, err
	}
	bucket, err := inventory.ParseBucket(row.CompanyID, row.ItemID, row.ProductTypeID, row.WarehouseID, row.Unit, row.Bin, row.BatchNo)
	if err != nil {
		return inventory.LedgerEntry{}, err
	}
	kind, err := inventory.ParseMovementKind(row.Kind)
	if err != nil {
		return inventory.LedgerEntry{}, err
	}
	actor, err := inventory.NewActorID(row.ActorID)
	if err != nil {
		return inventory.LedgerEntry{}, err
	}
	reference, err := inventory.NewReference(stringOrEmpty(row.ReferenceType), stringOrEmpty(row.ReferenceID))
	if err != nil {
		return inventory.LedgerEntry{}, err
	}
	return inventory.LedgerEntry{
		EntryID:     entryID,
		Bucket:      bucket,
		Quantity:    row.Quantity.Round(inventory.QuantityScale),
		Kind:        kind,
		Reference:   reference,
		Note:        row.Note,
		Actor:       actor,
		EffectiveAt: row.EffectiveAt.UTC(),
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}

func mapSnapshot(row Snapshot) (inventory.Snapshot, error) {
	bucket, err := inventory.ParseBucket(row.CompanyID, row.ItemID, row.ProductTypeID, row.WarehouseID, row.Unit, row.Bin, row.BatchNo)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return inventory.NewSnapshot(bucket, row.OnHand.Round(inventory.QuantityScale), row.Reserved.Round(inventory.QuantityScale), row.UpdatedAt.UTC())
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
