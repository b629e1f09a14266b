package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	snapshotColumns = `company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit, on_hand, reserved, updated_at`

	sqlGuardedDecrementOnHand = `
		update inventory_snapshots
		set on_hand = on_hand + $2, available = on_hand + $2 - reserved, updated_at = $3
		where bucket_key = $1 and on_hand + $2 >= 0
		returning ` + snapshotColumns

	sqlUpsertOnHand = `
		insert into inventory_snapshots(
			bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit,
			on_hand, reserved, available, updated_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $9, $10)
		on conflict (bucket_key) do update set
			on_hand = inventory_snapshots.on_hand + excluded.on_hand,
			available = inventory_snapshots.on_hand + excluded.on_hand - inventory_snapshots.reserved,
			updated_at = excluded.updated_at
		returning ` + snapshotColumns

	sqlGuardedReserve = `
		update inventory_snapshots
		set reserved = reserved + $2, available = on_hand - reserved - $2, updated_at = $3
		where bucket_key = $1 and on_hand - reserved - $2 >= 0
		returning ` + snapshotColumns

	sqlUpsertReserved = `
		insert into inventory_snapshots(
			bucket_key, company_id, item_id, product_type_id, warehouse_id, bin, batch_no, unit,
			on_hand, reserved, available, updated_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, 0, greatest($9::numeric, 0), -greatest($9::numeric, 0), $10)
		on conflict (bucket_key) do update set
			reserved = greatest(inventory_snapshots.reserved + $9::numeric, 0),
			available = inventory_snapshots.on_hand - greatest(inventory_snapshots.reserved + $9::numeric, 0),
			updated_at = excluded.updated_at
		returning ` + snapshotColumns

	sqlSelectSnapshot = `select ` + snapshotColumns + ` from inventory_snapshots where bucket_key = $1`

	sqlSelectSnapshots = `select ` + snapshotColumns + ` from inventory_snapshots`
)

func (store *Store) IncrementOnHand(ctx context.Context, bucket inventory.Bucket, delta decimal.Decimal, guard inventory.Guard) (inventory.Snapshot, error) {
	now := store.now().UTC()
	if guard == inventory.GuardNonNegative && delta.IsNegative() {
		return store.guardedUpdate(ctx, sqlGuardedDecrementOnHand, bucket, delta, now)
	}
	return store.upsert(ctx, sqlUpsertOnHand, bucket, delta, now)
}

func (store *Store) IncrementReserved(ctx context.Context, bucket inventory.Bucket, delta decimal.Decimal, guard inventory.Guard) (inventory.Snapshot, error) {
	now := store.now().UTC()
	if guard == inventory.GuardNonNegative && delta.IsPositive() {
		return store.guardedUpdate(ctx, sqlGuardedReserve, bucket, delta, now)
	}
	return store.upsert(ctx, sqlUpsertReserved, bucket, delta, now)
}

func (store *Store) guardedUpdate(ctx context.Context, statement string, bucket inventory.Bucket, delta decimal.Decimal, now time.Time) (inventory.Snapshot, error) {
	snapshot, err := scanSnapshot(store.db.QueryRow(ctx, statement, bucket.Key(), delta, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeGuard, inventory.ErrGuardRejected)
	}
	if err != nil {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, err)
	}
	return snapshot, nil
}

func (store *Store) upsert(ctx context.Context, statement string, bucket inventory.Bucket, delta decimal.Decimal, now time.Time) (inventory.Snapshot, error) {
	snapshot, err := scanSnapshot(store.db.QueryRow(ctx, statement,
		bucket.Key(),
		bucket.CompanyID().String(),
		bucket.ItemID().String(),
		bucket.ProductTypeID().String(),
		bucket.WarehouseID().String(),
		bucket.Bin().Pointer(),
		bucket.BatchNo().Pointer(),
		bucket.Unit().String(),
		delta,
		now,
	))
	if err != nil {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeIncrement, err)
	}
	return snapshot, nil
}

func (store *Store) ReadSnapshot(ctx context.Context, bucket inventory.Bucket) (inventory.Snapshot, error) {
	snapshot, err := scanSnapshot(store.db.QueryRow(ctx, sqlSelectSnapshot, bucket.Key()))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.ZeroSnapshot(bucket), nil
	}
	if err != nil {
		return inventory.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeRead, err)
	}
	return snapshot, nil
}

func (store *Store) ListSnapshots(ctx context.Context, filter inventory.SnapshotFilter) ([]inventory.Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, wrapStoreError(errorSubjectSnapshot, errorCodeList, err)
	}
	where := newConditions()
	where.add("company_id = ?", filter.CompanyID.String())
	where.bucketFilter(filter.ItemID, filter.ProductTypeID, filter.WarehouseID, filter.Unit, filter.Bin, filter.BatchNo)
	rows, err := store.db.Query(ctx, sqlSelectSnapshots+" where "+where.sql()+" order by bucket_key", where.args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectSnapshot, errorCodeList, err)
	}
	defer rows.Close()
	var snapshots []inventory.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSnapshot, errorCodeInvalid, err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectSnapshot, errorCodeList, err)
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (inventory.Snapshot, error) {
	var (
		companyValue, itemValue, productTypeValue, warehouseValue, unitValue string
		binValue, batchValue                                                 *string
		onHand, reserved                                                     decimal.Decimal
		updatedAt                                                            time.Time
	)
	if err := row.Scan(&companyValue, &itemValue, &productTypeValue, &warehouseValue, &binValue, &batchValue, &unitValue, &onHand, &reserved, &updatedAt); err != nil {
		return inventory.Snapshot{}, err
	}
	bucket, err := inventory.ParseBucket(companyValue, itemValue, productTypeValue, warehouseValue, unitValue, binValue, batchValue)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return inventory.NewSnapshot(bucket, onHand, reserved, updatedAt.UTC())
}
