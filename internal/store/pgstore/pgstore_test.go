package pgstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

var snapshotColumnNames = []string{"company_id", "item_id", "product_type_id", "warehouse_id", "bin", "batch_no", "unit", "on_hand", "reserved", "updated_at"}

func newMockStore(test *testing.T, options ...Option) (*Store, pgxmock.PgxPoolIface) {
	test.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(test, err)
	test.Cleanup(mock.Close)
	options = append([]Option{WithClock(func() time.Time { return fixedNow })}, options...)
	return New(mock, options...), mock
}

func testBucket(test *testing.T) inventory.Bucket {
	test.Helper()
	companyID, err := inventory.NewCompanyID("acme")
	require.NoError(test, err)
	itemID, err := inventory.NewItemID("roll-a")
	require.NoError(test, err)
	productTypeID, err := inventory.NewProductTypeID("insulation")
	require.NoError(test, err)
	warehouseID, err := inventory.NewWarehouseID("main")
	require.NoError(test, err)
	unit, err := inventory.NewUnitOfMeasure("kg")
	require.NoError(test, err)
	bucket, err := inventory.NewBucket(companyID, itemID, productTypeID, warehouseID, unit, inventory.NoDimension(), inventory.NoDimension())
	require.NoError(test, err)
	return bucket
}

func snapshotRows(onHand string, reserved string) *pgxmock.Rows {
	return pgxmock.NewRows(snapshotColumnNames).
		AddRow("acme", "roll-a", "insulation", "main", (*string)(nil), (*string)(nil), "kg", onHand, reserved, fixedNow)
}

func mustOverride(test *testing.T) inventory.AdministrativeOverride {
	test.Helper()
	override, err := inventory.GrantAdministrativeOverride("data fix")
	require.NoError(test, err)
	return override
}

func mustEntryID(test *testing.T) inventory.EntryID {
	test.Helper()
	entryID, err := inventory.NewEntryID("4f0c2f7e-8a4b-4b38-9d51-3c1a0f6f2b10")
	require.NoError(test, err)
	return entryID
}

func TestGuardedDecrementRejectsWhenNoRowQualifies(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)
	delta := decimal.NewFromInt(-5)

	mock.ExpectQuery(regexp.QuoteMeta("where bucket_key = $1 and on_hand + $2 >= 0")).
		WithArgs(bucket.Key(), delta, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(snapshotColumnNames))

	_, err := store.IncrementOnHand(context.Background(), bucket, delta, inventory.GuardNonNegative)
	require.ErrorIs(test, err, inventory.ErrGuardRejected)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestUnguardedIncrementUpsertsSnapshot(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta("on_hand = inventory_snapshots.on_hand + excluded.on_hand")).
		WillReturnRows(snapshotRows("7", "2"))

	snapshot, err := store.IncrementOnHand(context.Background(), bucket, decimal.NewFromInt(7), inventory.Unguarded)
	require.NoError(test, err)
	assert.Equal(test, bucket.Key(), snapshot.Bucket.Key())
	assert.True(test, snapshot.OnHand.Equal(decimal.NewFromInt(7)))
	assert.True(test, snapshot.Available.Equal(decimal.NewFromInt(5)))
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestGuardedReservationChecksAvailability(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta("where bucket_key = $1 and on_hand - reserved - $2 >= 0")).
		WillReturnRows(pgxmock.NewRows(snapshotColumnNames))

	_, err := store.IncrementReserved(context.Background(), bucket, decimal.NewFromInt(3), inventory.GuardNonNegative)
	require.ErrorIs(test, err, inventory.ErrGuardRejected)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestReleaseClampsThroughUpsert(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta("reserved = greatest(inventory_snapshots.reserved + $9::numeric, 0)")).
		WillReturnRows(snapshotRows("4", "0"))

	snapshot, err := store.IncrementReserved(context.Background(), bucket, decimal.NewFromInt(-10), inventory.GuardNonNegative)
	require.NoError(test, err)
	assert.True(test, snapshot.Reserved.IsZero())
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestReadSnapshotWithoutRowIsZero(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectSnapshot)).
		WithArgs(bucket.Key()).
		WillReturnRows(pgxmock.NewRows(snapshotColumnNames))

	snapshot, err := store.ReadSnapshot(context.Background(), bucket)
	require.NoError(test, err)
	assert.True(test, snapshot.OnHand.IsZero())
	assert.Equal(test, bucket.Key(), snapshot.Bucket.Key())
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestRecordEntryReturnsGeneratedID(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)
	quantity, err := inventory.ParseQuantity("4")
	require.NoError(test, err)
	actor, err := inventory.NewActorID("operator-1")
	require.NoError(test, err)
	input, err := inventory.NewEntryInput(bucket, quantity, inventory.MovementReceipt, inventory.Reference{}, "", actor, fixedNow, fixedNow)
	require.NoError(test, err)

	mock.ExpectQuery(regexp.QuoteMeta("insert into inventory_ledger(")).
		WillReturnRows(pgxmock.NewRows([]string{"entry_id", "quantity"}).AddRow("4f0c2f7e-8a4b-4b38-9d51-3c1a0f6f2b10", "4.000000"))

	entry, err := store.RecordEntry(context.Background(), input)
	require.NoError(test, err)
	assert.Equal(test, "4f0c2f7e-8a4b-4b38-9d51-3c1a0f6f2b10", entry.EntryID.String())
	assert.True(test, entry.Quantity.Equal(decimal.NewFromInt(4)), "stored quantity %s", entry.Quantity)
	assert.Equal(test, inventory.MovementReceipt, entry.Kind)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestListEntriesBindsPositionalFilters(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta("where company_id = $1 and item_id = $2 and bin is null order by effective_at asc, created_at asc, entry_id asc limit 100")).
		WithArgs("acme", "roll-a").
		WillReturnRows(pgxmock.NewRows([]string{"entry_id"}))

	entries, err := store.ListEntries(context.Background(), inventory.LedgerFilter{
		CompanyID: bucket.CompanyID(),
		ItemID:    bucket.ItemID(),
		Bin:       inventory.MatchDimension(inventory.NoDimension()),
		Order:     inventory.SortAscending,
	})
	require.NoError(test, err)
	assert.Empty(test, entries)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestAmendEntryLiftsTriggerInsideTransaction(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	entryID := mustEntryID(test)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sqlEnableOverride)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlAmendEntryNote)).
		WithArgs(entryID.String(), "corrected").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlDisableOverride)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	require.NoError(test, store.AmendEntry(context.Background(), entryID, "corrected", mustOverride(test)))
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestRemoveEntryFailures(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		result    pgconn.CommandTag
		execError error
		expected  error
	}{
		{
			name:      "trigger rejection",
			execError: &pgconn.PgError{Code: ledgerImmutableCode, Message: "inventory ledger rows are immutable"},
			expected:  inventory.ErrLedgerImmutable,
		},
		{
			name:     "missing entry",
			result:   pgxmock.NewResult("DELETE", 0),
			expected: inventory.ErrEntryNotFound,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store, mock := newMockStore(test)
			entryID := mustEntryID(test)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(sqlEnableOverride)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
			remove := mock.ExpectExec(regexp.QuoteMeta(sqlDeleteEntry)).WithArgs(entryID.String())
			if testCase.execError != nil {
				remove.WillReturnError(testCase.execError)
			} else {
				remove.WillReturnResult(testCase.result)
				mock.ExpectExec(regexp.QuoteMeta(sqlDisableOverride)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
			}
			mock.ExpectRollback()

			err := store.RemoveEntry(context.Background(), entryID, mustOverride(test))
			require.ErrorIs(test, err, testCase.expected)
			require.NoError(test, mock.ExpectationsWereMet())
		})
	}
}

func TestRemoveEntryWithoutOverrideNeverTouchesDatabase(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)

	err := store.RemoveEntry(context.Background(), mustEntryID(test), inventory.AdministrativeOverride{})
	require.ErrorIs(test, err, inventory.ErrLedgerImmutable)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestWithTxCommitsAndRollsBack(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectSnapshot)).WillReturnRows(snapshotRows("1", "0"))
	mock.ExpectCommit()
	require.NoError(test, store.WithTx(ctx, func(ctx context.Context, txStore inventory.Store) error {
		_, err := txStore.ReadSnapshot(ctx, bucket)
		return err
	}))

	failure := errors.New("leg failed")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err := store.WithTx(ctx, func(ctx context.Context, txStore inventory.Store) error {
		return failure
	})
	require.ErrorIs(test, err, failure)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestWithTxUnsupportedWhenDisabled(test *testing.T) {
	test.Parallel()
	store, _ := newMockStore(test, WithTransactions(false))
	assert.False(test, store.SupportsMultiDocumentTransactions())
	err := store.WithTx(context.Background(), func(ctx context.Context, txStore inventory.Store) error {
		return nil
	})
	require.ErrorIs(test, err, inventory.ErrTransactionUnsupported)
}

func TestProbeTransactions(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	mock.ExpectBegin()
	mock.ExpectRollback()
	require.NoError(test, store.ProbeTransactions(context.Background()))

	mock.ExpectBegin().WillReturnError(errors.New("read only"))
	require.Error(test, store.ProbeTransactions(context.Background()))
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestCatalogLookupsReportMissingRows(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)

	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectItem)).
		WithArgs("acme", "roll-a").
		WillReturnRows(pgxmock.NewRows([]string{"product_type_id", "unit"}))
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectWarehouse)).
		WithArgs("acme", "main").
		WillReturnRows(pgxmock.NewRows([]string{"found"}))

	_, err := store.LookupItem(context.Background(), bucket.CompanyID(), bucket.ItemID())
	require.ErrorIs(test, err, inventory.ErrItemNotFound)
	err = store.LookupWarehouse(context.Background(), bucket.CompanyID(), bucket.WarehouseID())
	require.ErrorIs(test, err, inventory.ErrBucketNotFound)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestCreateBatchMapsUniqueViolation(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)
	bucket := testBucket(test)
	actor, err := inventory.NewActorID("operator-1")
	require.NoError(test, err)

	mock.ExpectExec(regexp.QuoteMeta("insert into production_batches(")).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolationCode})

	_, err = store.CreateBatch(context.Background(), consumption.Batch{
		CompanyID:  bucket.CompanyID(),
		Code:       "B-1",
		Multiplier: decimal.NewFromInt(1),
		TotalGrams: decimal.NewFromInt(1000),
		Actor:      actor,
		ProducedAt: fixedNow,
	})
	require.ErrorIs(test, err, consumption.ErrDuplicateBatch)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestDeleteBatchReportsMissingBatch(test *testing.T) {
	test.Parallel()
	store, mock := newMockStore(test)

	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteBatch)).
		WithArgs("0b9c8a7e-1111-4222-8333-944455556666").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteBatch(context.Background(), "0b9c8a7e-1111-4222-8333-944455556666")
	require.ErrorIs(test, err, consumption.ErrBatchNotFound)
	require.NoError(test, mock.ExpectationsWereMet())
}

func TestMigrateAppliesEmbeddedSchema(test *testing.T) {
	test.Parallel()
	_, mock := newMockStore(test)

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists inventory_ledger")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(test, Migrate(context.Background(), mock))

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists inventory_ledger")).
		WillReturnError(errors.New("permission denied"))
	require.Error(test, Migrate(context.Background(), mock))
	require.NoError(test, mock.ExpectationsWereMet())
}
