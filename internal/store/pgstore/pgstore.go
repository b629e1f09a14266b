package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolationCode   = "23505"
	ledgerImmutableCode     = "SL001"
	errorOperationStore     = "store"
	errorSubjectEntry       = "entry"
	errorSubjectSchema      = "schema"
	errorSubjectSnapshot    = "snapshot"
	errorSubjectTransaction = "transaction"
	errorCodeAmend          = "amend"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeGuard          = "guard"
	errorCodeIncrement      = "increment"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeMigrate        = "migrate"
	errorCodeRead           = "read"
	errorCodeRemove         = "remove"
	errorCodeSum            = "sum"
	errorCodeUnsupported    = "unsupported"

	sqlInsertEntry = `
		insert into inventory_ledger(
			bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit,
			quantity, kind, reference_type, reference_id, note, actor_id, effective_at, created_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, nullif($11,''), nullif($12,''), $13, $14, $15, $16)
		returning entry_id::text, quantity
	`

	sqlSelectEntries = `
		select
			entry_id::text, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit,
			quantity, kind, coalesce(reference_type,''), coalesce(reference_id,''), note, actor_id,
			effective_at, created_at
		from inventory_ledger
	`

	sqlEnableOverride  = `select set_config('stockledger.ledger_override', 'on', true)`
	sqlDisableOverride = `select set_config('stockledger.ledger_override', 'off', true)`
	sqlAmendEntryNote  = `update inventory_ledger set note = $2 where entry_id = $1::uuid`
	sqlDeleteEntry     = `delete from inventory_ledger where entry_id = $1::uuid`

	sqlSumByBucket = `
		select company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit, coalesce(sum(quantity),0)
		from inventory_ledger
		where company_id = $1
		group by bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit
	`
)

// Querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store implements inventory.Store using pgx. Outside WithTx every statement
// runs in autocommit mode.
type Store struct {
	pool          Pool
	db            Querier
	tx            pgx.Tx
	transactional bool
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTransactions sets whether WithTx opens real transactions.
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

// New returns a Store backed by a pgx pool.
func New(pool Pool, options ...Option) *Store {
	store := &Store{pool: pool, db: pool, transactional: true, now: time.Now}
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

// ProbeTransactions opens and rolls back an empty transaction.
func (store *Store) ProbeTransactions(ctx context.Context) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	return tx.Rollback(ctx)
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore inventory.Store) error) error {
	if !store.transactional {
		return wrapStoreError(errorSubjectTransaction, errorCodeUnsupported, inventory.ErrTransactionUnsupported)
	}
	if store.tx != nil {
		return fn(ctx, store)
	}
	return store.inTransaction(ctx, func(tx pgx.Tx) error {
		return fn(ctx, store.bound(tx))
	})
}

func (store *Store) bound(tx pgx.Tx) *Store {
	return &Store{pool: store.pool, db: tx, tx: tx, transactional: store.transactional, now: store.now}
}

// inTransaction reuses the active transaction or opens a new one.
func (store *Store) inTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if store.tx != nil {
		return fn(store.tx)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) RecordEntry(ctx context.Context, entryInput inventory.EntryInput) (inventory.LedgerEntry, error) {
	bucket := entryInput.Bucket()
	reference := entryInput.Reference()
	var (
		entryIDValue string
		stored       decimal.Decimal
	)
	err := store.db.QueryRow(ctx, sqlInsertEntry,
		bucket.Key(),
		bucket.CompanyID().String(),
		bucket.ItemID().String(),
		bucket.ProductTypeID().String(),
		bucket.WarehouseID().String(),
		bucket.Bin().Pointer(),
		bucket.BatchNo().Pointer(),
		bucket.Unit().String(),
		entryInput.Quantity().Decimal(),
		entryInput.Kind().String(),
		reference.Type,
		reference.ID,
		entryInput.Note(),
		entryInput.Actor().String(),
		entryInput.EffectiveAt(),
		entryInput.CreatedAt(),
	).Scan(&entryIDValue, &stored)
	if err != nil {
		return inventory.LedgerEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entryID, err := inventory.NewEntryID(entryIDValue)
	if err != nil {
		return inventory.LedgerEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return inventory.LedgerEntry{
		EntryID:     entryID,
		Bucket:      bucket,
		Quantity:    stored,
		Kind:        entryInput.Kind(),
		Reference:   reference,
		Note:        entryInput.Note(),
		Actor:       entryInput.Actor(),
		EffectiveAt: entryInput.EffectiveAt(),
		CreatedAt:   entryInput.CreatedAt(),
	}, nil
}

func (store *Store) ListEntries(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error) {
	normalized, err := filter.Normalize()
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	where := newConditions()
	where.add("company_id = ?", normalized.CompanyID.String())
	where.bucketFilter(normalized.ItemID, normalized.ProductTypeID, normalized.WarehouseID, normalized.Unit, normalized.Bin, normalized.BatchNo)
	if normalized.Kind != "" {
		where.add("kind = ?", normalized.Kind.String())
	}
	if normalized.ReferenceType != "" {
		where.add("reference_type = ?", normalized.ReferenceType)
	}
	if normalized.ReferenceID != "" {
		where.add("reference_id = ?", normalized.ReferenceID)
	}
	if !normalized.From.IsZero() {
		where.add("effective_at >= ?", normalized.From.UTC())
	}
	if !normalized.To.IsZero() {
		where.add("effective_at <= ?", normalized.To.UTC())
	}
	direction := "desc"
	if normalized.Order == inventory.SortAscending {
		direction = "asc"
	}
	query := fmt.Sprintf("%s where %s order by effective_at %s, created_at %s, entry_id %s limit %d",
		sqlSelectEntries, where.sql(), direction, direction, direction, normalized.Limit)

	rows, err := store.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entries, nil
}

func (store *Store) AmendEntry(ctx context.Context, entryID inventory.EntryID, note string, override inventory.AdministrativeOverride) error {
	if !override.Granted() {
		return wrapStoreError(errorSubjectEntry, errorCodeAmend, inventory.ErrLedgerImmutable)
	}
	return store.withOverride(ctx, errorCodeAmend, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, sqlAmendEntryNote, entryID.String(), note)
	})
}

func (store *Store) RemoveEntry(ctx context.Context, entryID inventory.EntryID, override inventory.AdministrativeOverride) error {
	if !override.Granted() {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, inventory.ErrLedgerImmutable)
	}
	return store.withOverride(ctx, errorCodeRemove, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, sqlDeleteEntry, entryID.String())
	})
}

// withOverride lifts the ledger trigger for one statement. The setting is
// transaction-local, so the statement always runs inside a transaction.
func (store *Store) withOverride(ctx context.Context, code string, statement func(tx pgx.Tx) (pgconn.CommandTag, error)) error {
	return store.inTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlEnableOverride); err != nil {
			return wrapStoreError(errorSubjectEntry, code, err)
		}
		tag, err := statement(tx)
		if err != nil {
			return wrapStoreError(errorSubjectEntry, code, mapLedgerError(err))
		}
		if _, err := tx.Exec(ctx, sqlDisableOverride); err != nil {
			return wrapStoreError(errorSubjectEntry, code, err)
		}
		if tag.RowsAffected() == 0 {
			return wrapStoreError(errorSubjectEntry, code, inventory.ErrEntryNotFound)
		}
		return nil
	})
}

func (store *Store) SumEntriesByBucket(ctx context.Context, companyID inventory.CompanyID) ([]inventory.BucketTotal, error) {
	rows, err := store.db.Query(ctx, sqlSumByBucket, companyID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeSum, err)
	}
	defer rows.Close()
	var totals []inventory.BucketTotal
	for rows.Next() {
		var (
			companyValue, itemValue, productTypeValue, warehouseValue, unitValue string
			binValue, batchValue                                                 *string
			total                                                                decimal.Decimal
		)
		if err := rows.Scan(&companyValue, &itemValue, &productTypeValue, &warehouseValue, &binValue, &batchValue, &unitValue, &total); err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeSum, err)
		}
		bucket, err := inventory.ParseBucket(companyValue, itemValue, productTypeValue, warehouseValue, unitValue, binValue, batchValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		totals = append(totals, inventory.BucketTotal{Bucket: bucket, Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeSum, err)
	}
	return totals, nil
}

func scanEntries(rows pgx.Rows) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	for rows.Next() {
		var (
			entryIDValue, companyValue, itemValue, productTypeValue, warehouseValue, unitValue string
			kindValue, referenceType, referenceID, note, actorValue                            string
			binValue, batchValue                                                               *string
			quantity                                                                           decimal.Decimal
			effectiveAt, createdAt                                                             time.Time
		)
		if err := rows.Scan(
			&entryIDValue, &companyValue, &itemValue, &productTypeValue, &warehouseValue, &binValue, &batchValue, &unitValue,
			&quantity, &kindValue, &referenceType, &referenceID, &note, &actorValue,
			&effectiveAt, &createdAt,
		); err != nil {
			return nil, err
		}
		entryID, err := inventory.NewEntryID(entryIDValue)
		if err != nil {
			return nil, err
		}
		bucket, err := inventory.ParseBucket(companyValue, itemValue, productTypeValue, warehouseValue, unitValue, binValue, batchValue)
		if err != nil {
			return nil, err
		}
		kind, err := inventory.ParseMovementKind(kindValue)
		if err != nil {
			return nil, err
		}
		actor, err := inventory.NewActorID(actorValue)
		if err != nil {
			return nil, err
		}
		reference, err := inventory.NewReference(referenceType, referenceID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, inventory.LedgerEntry{
			EntryID:     entryID,
			Bucket:      bucket,
			Quantity:    quantity,
			Kind:        kind,
			Reference:   reference,
			Note:        note,
			Actor:       actor,
			EffectiveAt: effectiveAt.UTC(),
			CreatedAt:   createdAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// conditions accumulates a where clause with positional arguments.
type conditions struct {
	clauses []string
	args    []any
}

func newConditions() *conditions {
	return &conditions{}
}

// add appends a clause whose single ? placeholder binds value.
func (where *conditions) add(clause string, value any) {
	where.args = append(where.args, value)
	where.clauses = append(where.clauses, strings.Replace(clause, "?", fmt.Sprintf("$%d", len(where.args)), 1))
}

func (where *conditions) addRaw(clause string) {
	where.clauses = append(where.clauses, clause)
}

func (where *conditions) sql() string {
	return strings.Join(where.clauses, " and ")
}

func (where *conditions) bucketFilter(itemID inventory.ItemID, productTypeID inventory.ProductTypeID, warehouseID inventory.WarehouseID, unit inventory.UnitOfMeasure, bin inventory.DimensionFilter, batchNo inventory.DimensionFilter) {
	if !itemID.IsZero() {
		where.add("item_id = ?", itemID.String())
	}
	if !productTypeID.IsZero() {
		where.add("product_type_id = ?", productTypeID.String())
	}
	if !warehouseID.IsZero() {
		where.add("warehouse_id = ?", warehouseID.String())
	}
	if !unit.IsZero() {
		where.add("unit = ?", unit.String())
	}
	where.dimension("bin", bin)
	where.dimension("batch_no", batchNo)
}

func (where *conditions) dimension(column string, filter inventory.DimensionFilter) {
	dimension, set := filter.Match()
	if !set {
		return
	}
	value, present := dimension.Value()
	if !present {
		where.addRaw(column + " is null")
		return
	}
	where.add(column+" = ?", value)
}

func wrapStoreError(subject string, code string, err error) error {
	return inventory.WrapError(errorOperationStore, subject, code, err)
}

func mapLedgerError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == ledgerImmutableCode {
		return fmt.Errorf("%w: %s", inventory.ErrLedgerImmutable, pgErr.Message)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}
