package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// memoryFaults injects failures into memoryStore; shared by the store and
// every transaction view of it.
type memoryFaults struct {
	recordEntryCalls   int
	failRecordOnCall   int
	recordEntryError   error
	rejectGuardOnCall  int
	guardedCalls       int
	removeEntryError   error
	incrementError     error
	listEntriesError   error
	readSnapshotError  error
	sumEntriesError    error
	listSnapshotsError error
}

type memoryState struct {
	entries   []LedgerEntry
	snapshots map[Bucket]Snapshot
	nextID    int
}

func (state *memoryState) clone() *memoryState {
	cloned := &memoryState{
		entries:   append([]LedgerEntry(nil), state.entries...),
		snapshots: make(map[Bucket]Snapshot, len(state.snapshots)),
		nextID:    state.nextID,
	}
	for bucket, snapshot := range state.snapshots {
		cloned.snapshots[bucket] = snapshot
	}
	return cloned
}

type memoryStore struct {
	mutex         *sync.Mutex
	state         *memoryState
	faults        *memoryFaults
	transactional bool
	inTx          bool
}

func newMemoryStore(test *testing.T, transactional bool) *memoryStore {
	test.Helper()
	return &memoryStore{
		mutex:         &sync.Mutex{},
		state:         &memoryState{snapshots: map[Bucket]Snapshot{}},
		faults:        &memoryFaults{},
		transactional: transactional,
	}
}

func (store *memoryStore) lock() func() {
	if store.inTx {
		return func() {}
	}
	store.mutex.Lock()
	return store.mutex.Unlock
}

func (store *memoryStore) SupportsMultiDocumentTransactions() bool {
	return store.transactional
}

func (store *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if !store.transactional {
		return ErrTransactionUnsupported
	}
	unlock := store.lock()
	defer unlock()
	transactionStore := &memoryStore{
		mutex:         store.mutex,
		state:         store.state.clone(),
		faults:        store.faults,
		transactional: true,
		inTx:          true,
	}
	if err := fn(ctx, transactionStore); err != nil {
		return err
	}
	*store.state = *transactionStore.state
	return nil
}

func (store *memoryStore) RecordEntry(_ context.Context, input EntryInput) (LedgerEntry, error) {
	unlock := store.lock()
	defer unlock()
	store.faults.recordEntryCalls++
	if store.faults.recordEntryError != nil && (store.faults.failRecordOnCall == 0 || store.faults.failRecordOnCall == store.faults.recordEntryCalls) {
		return LedgerEntry{}, store.faults.recordEntryError
	}
	store.state.nextID++
	entryID, err := NewEntryID(fmt.Sprintf("entry-%d", store.state.nextID))
	if err != nil {
		return LedgerEntry{}, err
	}
	entry := LedgerEntry{
		EntryID:     entryID,
		Bucket:      input.Bucket(),
		Quantity:    input.Quantity().Decimal(),
		Kind:        input.Kind(),
		Reference:   input.Reference(),
		Note:        input.Note(),
		Actor:       input.Actor(),
		EffectiveAt: input.EffectiveAt(),
		CreatedAt:   input.CreatedAt(),
	}
	store.state.entries = append(store.state.entries, entry)
	return entry, nil
}

func (store *memoryStore) ListEntries(_ context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.listEntriesError != nil {
		return nil, store.faults.listEntriesError
	}
	matched := make([]LedgerEntry, 0)
	for _, entry := range store.state.entries {
		if entry.Bucket.CompanyID() != filter.CompanyID {
			continue
		}
		if !filter.ItemID.IsZero() && entry.Bucket.ItemID() != filter.ItemID {
			continue
		}
		if !filter.WarehouseID.IsZero() && entry.Bucket.WarehouseID() != filter.WarehouseID {
			continue
		}
		if bin, ok := filter.Bin.Match(); ok && entry.Bucket.Bin() != bin {
			continue
		}
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}
		if filter.ReferenceType != "" && entry.Reference.Type != filter.ReferenceType {
			continue
		}
		if !filter.From.IsZero() && entry.EffectiveAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.EffectiveAt.After(filter.To) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(left, right int) bool {
		if filter.Order == SortAscending {
			return matched[left].EffectiveAt.Before(matched[right].EffectiveAt)
		}
		return matched[left].EffectiveAt.After(matched[right].EffectiveAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (store *memoryStore) AmendEntry(_ context.Context, entryID EntryID, note string, override AdministrativeOverride) error {
	unlock := store.lock()
	defer unlock()
	if !override.Granted() {
		return ErrLedgerImmutable
	}
	for index := range store.state.entries {
		if store.state.entries[index].EntryID == entryID {
			store.state.entries[index].Note = note
			return nil
		}
	}
	return ErrEntryNotFound
}

func (store *memoryStore) RemoveEntry(_ context.Context, entryID EntryID, override AdministrativeOverride) error {
	unlock := store.lock()
	defer unlock()
	if !override.Granted() {
		return ErrLedgerImmutable
	}
	if store.faults.removeEntryError != nil {
		return store.faults.removeEntryError
	}
	for index, entry := range store.state.entries {
		if entry.EntryID == entryID {
			store.state.entries = append(store.state.entries[:index], store.state.entries[index+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (store *memoryStore) SumEntriesByBucket(_ context.Context, companyID CompanyID) ([]BucketTotal, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.sumEntriesError != nil {
		return nil, store.faults.sumEntriesError
	}
	sums := map[Bucket]decimal.Decimal{}
	order := []Bucket{}
	for _, entry := range store.state.entries {
		if entry.Bucket.CompanyID() != companyID {
			continue
		}
		if _, seen := sums[entry.Bucket]; !seen {
			order = append(order, entry.Bucket)
		}
		sums[entry.Bucket] = sums[entry.Bucket].Add(entry.Quantity)
	}
	totals := make([]BucketTotal, 0, len(order))
	for _, bucket := range order {
		totals = append(totals, BucketTotal{Bucket: bucket, Total: sums[bucket]})
	}
	return totals, nil
}

func (store *memoryStore) IncrementOnHand(_ context.Context, bucket Bucket, delta decimal.Decimal, guard Guard) (Snapshot, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.incrementError != nil {
		return Snapshot{}, store.faults.incrementError
	}
	current, exists := store.state.snapshots[bucket]
	if guard == GuardNonNegative && delta.IsNegative() {
		store.faults.guardedCalls++
		if store.faults.rejectGuardOnCall == store.faults.guardedCalls {
			return Snapshot{}, ErrGuardRejected
		}
		if !exists || current.OnHand.Add(delta).IsNegative() {
			return Snapshot{}, ErrGuardRejected
		}
	}
	if !exists {
		current = ZeroSnapshot(bucket)
	}
	updated, err := NewSnapshot(bucket, current.OnHand.Add(delta), current.Reserved, time.Unix(0, 0).UTC())
	if err != nil {
		return Snapshot{}, err
	}
	store.state.snapshots[bucket] = updated
	return updated, nil
}

func (store *memoryStore) IncrementReserved(_ context.Context, bucket Bucket, delta decimal.Decimal, guard Guard) (Snapshot, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.incrementError != nil {
		return Snapshot{}, store.faults.incrementError
	}
	current, exists := store.state.snapshots[bucket]
	if guard == GuardNonNegative && delta.IsPositive() {
		if !exists || current.Available.Sub(delta).IsNegative() {
			return Snapshot{}, ErrGuardRejected
		}
	}
	if !exists {
		current = ZeroSnapshot(bucket)
	}
	reserved := current.Reserved.Add(delta)
	if reserved.IsNegative() {
		reserved = decimal.Zero
	}
	updated, err := NewSnapshot(bucket, current.OnHand, reserved, time.Unix(0, 0).UTC())
	if err != nil {
		return Snapshot{}, err
	}
	store.state.snapshots[bucket] = updated
	return updated, nil
}

func (store *memoryStore) ReadSnapshot(_ context.Context, bucket Bucket) (Snapshot, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.readSnapshotError != nil {
		return Snapshot{}, store.faults.readSnapshotError
	}
	snapshot, exists := store.state.snapshots[bucket]
	if !exists {
		return ZeroSnapshot(bucket), nil
	}
	return snapshot, nil
}

func (store *memoryStore) ListSnapshots(_ context.Context, filter SnapshotFilter) ([]Snapshot, error) {
	unlock := store.lock()
	defer unlock()
	if store.faults.listSnapshotsError != nil {
		return nil, store.faults.listSnapshotsError
	}
	snapshots := make([]Snapshot, 0, len(store.state.snapshots))
	for bucket, snapshot := range store.state.snapshots {
		if bucket.CompanyID() != filter.CompanyID {
			continue
		}
		if !filter.ItemID.IsZero() && bucket.ItemID() != filter.ItemID {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(left, right int) bool {
		return snapshots[left].Bucket.Key() < snapshots[right].Bucket.Key()
	})
	return snapshots, nil
}

func (store *memoryStore) entryCount() int {
	unlock := store.lock()
	defer unlock()
	return len(store.state.entries)
}

func (store *memoryStore) snapshotOf(bucket Bucket) (Snapshot, bool) {
	unlock := store.lock()
	defer unlock()
	snapshot, ok := store.state.snapshots[bucket]
	return snapshot, ok
}

type stubCatalog struct {
	items      map[string]Item
	warehouses map[string]bool
	lookupErr  error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{items: map[string]Item{}, warehouses: map[string]bool{}}
}

func (catalog *stubCatalog) addItem(test *testing.T, itemID string, productType string, unit string) {
	test.Helper()
	item := Item{
		CompanyID:     mustCompanyID(test, companyValue),
		ItemID:        mustItemID(test, itemID),
		ProductTypeID: mustProductTypeID(test, productType),
	}
	if unit != "" {
		item.Unit = mustDimension(test, unit)
	}
	catalog.items[itemID] = item
}

func (catalog *stubCatalog) addWarehouse(warehouseID string) {
	catalog.warehouses[warehouseID] = true
}

func (catalog *stubCatalog) LookupItem(_ context.Context, companyID CompanyID, itemID ItemID) (Item, error) {
	if catalog.lookupErr != nil {
		return Item{}, catalog.lookupErr
	}
	item, ok := catalog.items[itemID.String()]
	if !ok || item.CompanyID != companyID {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return item, nil
}

func (catalog *stubCatalog) LookupWarehouse(_ context.Context, _ CompanyID, warehouseID WarehouseID) error {
	if !catalog.warehouses[warehouseID.String()] {
		return fmt.Errorf("%w: warehouse %s", ErrBucketNotFound, warehouseID)
	}
	return nil
}

var errStoreFailure = errors.New("store error")
