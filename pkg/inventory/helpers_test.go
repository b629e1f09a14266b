package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	companyValue     = "company-1"
	itemAValue       = "item-a"
	itemBValue       = "item-b"
	itemOtherValue   = "item-other"
	productTypeValue = "flour"
	otherProductType = "sugar"
	warehouseAValue  = "wh-a"
	warehouseBValue  = "wh-b"
	unitKilogram     = "kg"
	unitPiece        = "pcs"
	actorValue       = "actor-1"

	errorMismatchMessage = "expected %v, got %v"
	quantityMessage      = "expected %s %s, got %s"
)

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func mustCompanyID(test *testing.T, raw string) CompanyID {
	test.Helper()
	value, err := NewCompanyID(raw)
	if err != nil {
		test.Fatalf("company id: %v", err)
	}
	return value
}

func mustItemID(test *testing.T, raw string) ItemID {
	test.Helper()
	value, err := NewItemID(raw)
	if err != nil {
		test.Fatalf("item id: %v", err)
	}
	return value
}

func mustProductTypeID(test *testing.T, raw string) ProductTypeID {
	test.Helper()
	value, err := NewProductTypeID(raw)
	if err != nil {
		test.Fatalf("product type id: %v", err)
	}
	return value
}

func mustWarehouseID(test *testing.T, raw string) WarehouseID {
	test.Helper()
	value, err := NewWarehouseID(raw)
	if err != nil {
		test.Fatalf("warehouse id: %v", err)
	}
	return value
}

func mustUnit(test *testing.T, raw string) UnitOfMeasure {
	test.Helper()
	value, err := NewUnitOfMeasure(raw)
	if err != nil {
		test.Fatalf("unit: %v", err)
	}
	return value
}

func mustActorID(test *testing.T, raw string) ActorID {
	test.Helper()
	value, err := NewActorID(raw)
	if err != nil {
		test.Fatalf("actor id: %v", err)
	}
	return value
}

func mustDimension(test *testing.T, raw string) Dimension {
	test.Helper()
	value, err := NewDimension(raw)
	if err != nil {
		test.Fatalf("dimension: %v", err)
	}
	return value
}

func mustQuantity(test *testing.T, raw string) Quantity {
	test.Helper()
	value, err := ParseQuantity(raw)
	if err != nil {
		test.Fatalf("quantity: %v", err)
	}
	return value
}

func mustBucket(test *testing.T, itemID string, warehouseID string) Bucket {
	test.Helper()
	bucket, err := NewBucket(
		mustCompanyID(test, companyValue),
		mustItemID(test, itemID),
		mustProductTypeID(test, productTypeValue),
		mustWarehouseID(test, warehouseID),
		mustUnit(test, unitKilogram),
		NoDimension(),
		NoDimension(),
	)
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	return bucket
}

func locator(test *testing.T, itemID string, warehouseID string) StockLocator {
	test.Helper()
	return StockLocator{
		CompanyID:   mustCompanyID(test, companyValue),
		ItemID:      mustItemID(test, itemID),
		WarehouseID: mustWarehouseID(test, warehouseID),
		Unit:        mustUnit(test, unitKilogram),
	}
}

func stockRequest(test *testing.T, itemID string, warehouseID string, quantity string) StockRequest {
	test.Helper()
	return StockRequest{
		StockLocator: locator(test, itemID, warehouseID),
		Quantity:     mustQuantity(test, quantity),
		Actor:        mustActorID(test, actorValue),
	}
}

func newFixtureCatalog(test *testing.T) *stubCatalog {
	test.Helper()
	catalog := newStubCatalog()
	catalog.addItem(test, itemAValue, productTypeValue, "")
	catalog.addItem(test, itemBValue, productTypeValue, "")
	catalog.addItem(test, itemOtherValue, otherProductType, "")
	catalog.addWarehouse(warehouseAValue)
	catalog.addWarehouse(warehouseBValue)
	return catalog
}

func mustNewService(test *testing.T, store Store, catalog Catalog, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, catalog, func() time.Time { return fixedNow }, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func requireQuantity(test *testing.T, label string, want string, got decimal.Decimal) {
	test.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		test.Fatalf(quantityMessage, label, want, got)
	}
}

// strategyCases runs a test body once per execution strategy.
var strategyCases = []struct {
	name          string
	transactional bool
}{
	{name: StrategyTransactional, transactional: true},
	{name: StrategySaga, transactional: false},
}
