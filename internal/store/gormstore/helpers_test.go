package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	companyValue   = "acme"
	productValue   = "insulation"
	mainWarehouse  = "main"
	spareWarehouse = "spare"
	kilograms      = "kg"
	actorValue     = "operator-1"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func openTestDatabase(test *testing.T) *gorm.DB {
	test.Helper()
	path := filepath.Join(test.TempDir(), "stock.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(test, err)
	sqlDB, err := db.DB()
	require.NoError(test, err)
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(test, Migrate(db))
	return db
}

func newTestStore(test *testing.T, transactional bool) (*Store, *gorm.DB) {
	test.Helper()
	db := openTestDatabase(test)
	store := New(db, WithTransactions(transactional), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()
	for _, item := range []string{"roll-a", "roll-b", "roll-c"} {
		require.NoError(test, store.RegisterItem(ctx, inventory.Item{
			CompanyID:     mustCompanyID(test),
			ItemID:        mustItemID(test, item),
			ProductTypeID: mustProductTypeID(test, productValue),
			Unit:          mustDimension(test, kilograms),
		}))
	}
	for _, warehouse := range []string{mainWarehouse, spareWarehouse} {
		require.NoError(test, store.RegisterWarehouse(ctx, mustCompanyID(test), mustWarehouseID(test, warehouse), warehouse))
	}
	return store, db
}

func newTestService(test *testing.T, store *Store) *inventory.Service {
	test.Helper()
	service, err := inventory.NewService(store, store, func() time.Time { return fixedNow })
	require.NoError(test, err)
	return service
}

func mustCompanyID(test *testing.T) inventory.CompanyID {
	test.Helper()
	companyID, err := inventory.NewCompanyID(companyValue)
	require.NoError(test, err)
	return companyID
}

func mustItemID(test *testing.T, raw string) inventory.ItemID {
	test.Helper()
	itemID, err := inventory.NewItemID(raw)
	require.NoError(test, err)
	return itemID
}

func mustProductTypeID(test *testing.T, raw string) inventory.ProductTypeID {
	test.Helper()
	productTypeID, err := inventory.NewProductTypeID(raw)
	require.NoError(test, err)
	return productTypeID
}

func mustWarehouseID(test *testing.T, raw string) inventory.WarehouseID {
	test.Helper()
	warehouseID, err := inventory.NewWarehouseID(raw)
	require.NoError(test, err)
	return warehouseID
}

func mustUnit(test *testing.T) inventory.UnitOfMeasure {
	test.Helper()
	unit, err := inventory.NewUnitOfMeasure(kilograms)
	require.NoError(test, err)
	return unit
}

func mustDimension(test *testing.T, raw string) inventory.Dimension {
	test.Helper()
	dimension, err := inventory.NewDimension(raw)
	require.NoError(test, err)
	return dimension
}

func mustActor(test *testing.T) inventory.ActorID {
	test.Helper()
	actor, err := inventory.NewActorID(actorValue)
	require.NoError(test, err)
	return actor
}

func mustQuantity(test *testing.T, raw string) inventory.Quantity {
	test.Helper()
	quantity, err := inventory.ParseQuantity(raw)
	require.NoError(test, err)
	return quantity
}

func mustBucket(test *testing.T, item string, warehouse string, bin inventory.Dimension) inventory.Bucket {
	test.Helper()
	bucket, err := inventory.NewBucket(mustCompanyID(test), mustItemID(test, item), mustProductTypeID(test, productValue), mustWarehouseID(test, warehouse), mustUnit(test), bin, inventory.NoDimension())
	require.NoError(test, err)
	return bucket
}

func locator(test *testing.T, item string, warehouse string) inventory.StockLocator {
	test.Helper()
	return inventory.StockLocator{
		CompanyID:   mustCompanyID(test),
		ItemID:      mustItemID(test, item),
		WarehouseID: mustWarehouseID(test, warehouse),
		Unit:        mustUnit(test),
		Bin:         inventory.NoDimension(),
		BatchNo:     inventory.NoDimension(),
	}
}

func stockRequest(test *testing.T, item string, warehouse string, quantity string) inventory.StockRequest {
	test.Helper()
	return inventory.StockRequest{
		StockLocator: locator(test, item, warehouse),
		Quantity:     mustQuantity(test, quantity),
		Actor:        mustActor(test),
	}
}

func requireDecimal(test *testing.T, expected string, actual decimal.Decimal) {
	test.Helper()
	require.True(test, actual.Equal(decimal.RequireFromString(expected)), "expected %s, got %s", expected, actual)
}

var strategyCases = []struct {
	name          string
	transactional bool
}{
	{name: "transactional", transactional: true},
	{name: "saga", transactional: false},
}
