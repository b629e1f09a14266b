package inventory

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIdentifierConstructorsRejectBlankValues(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		build   func() error
		wantErr error
	}{
		{name: "company", build: func() error { _, err := NewCompanyID("  "); return err }, wantErr: ErrInvalidCompanyID},
		{name: "item", build: func() error { _, err := NewItemID(""); return err }, wantErr: ErrInvalidItemID},
		{name: "product type", build: func() error { _, err := NewProductTypeID(" "); return err }, wantErr: ErrInvalidProductTypeID},
		{name: "warehouse", build: func() error { _, err := NewWarehouseID(""); return err }, wantErr: ErrInvalidWarehouseID},
		{name: "unit", build: func() error { _, err := NewUnitOfMeasure("\t"); return err }, wantErr: ErrInvalidUnit},
		{name: "actor", build: func() error { _, err := NewActorID(""); return err }, wantErr: ErrInvalidActorID},
		{name: "entry", build: func() error { _, err := NewEntryID(""); return err }, wantErr: ErrInvalidEntryID},
		{name: "dimension", build: func() error { _, err := NewDimension(" "); return err }, wantErr: ErrInvalidDimension},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if err := testCase.build(); !errors.Is(err, testCase.wantErr) {
				test.Fatalf(errorMismatchMessage, testCase.wantErr, err)
			}
		})
	}
}

func TestBucketIdentityTreatsAbsentDimensionsAsDistinct(test *testing.T) {
	test.Parallel()
	base := mustBucket(test, itemAValue, warehouseAValue)
	withBin, err := NewBucket(base.CompanyID(), base.ItemID(), base.ProductTypeID(), base.WarehouseID(), base.Unit(), mustDimension(test, "A-1"), NoDimension())
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	withBatch, err := NewBucket(base.CompanyID(), base.ItemID(), base.ProductTypeID(), base.WarehouseID(), base.Unit(), NoDimension(), mustDimension(test, "A-1"))
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	if base == withBin || withBin == withBatch {
		test.Fatalf("buckets differing only in a dimension must not be equal")
	}
	keys := map[string]bool{base.Key(): true, withBin.Key(): true, withBatch.Key(): true}
	if len(keys) != 3 {
		test.Fatalf("expected three distinct keys, got %v", keys)
	}
	if _, present := base.Bin().Value(); present {
		test.Fatalf("expected absent bin")
	}
	if base.Bin().Pointer() != nil {
		test.Fatalf("absent dimension must map to nil")
	}
}

func TestBucketKeyDoesNotCollideOnSeparators(test *testing.T) {
	test.Parallel()
	first, err := ParseBucket(companyValue, "a|1", productTypeValue, "b", unitKilogram, nil, nil)
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	second, err := ParseBucket(companyValue, "a", productTypeValue, "1|b", unitKilogram, nil, nil)
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	if first.Key() == second.Key() {
		test.Fatalf("keys collide: %q", first.Key())
	}
	dash := "-"
	withDashBin, err := ParseBucket(companyValue, itemAValue, productTypeValue, warehouseAValue, unitKilogram, &dash, nil)
	if err != nil {
		test.Fatalf("bucket: %v", err)
	}
	if withDashBin.Key() == mustBucket(test, itemAValue, warehouseAValue).Key() {
		test.Fatalf("a bin named %q must not encode like an absent bin", dash)
	}
}

func TestParseBucketRejectsEmptyDimension(test *testing.T) {
	test.Parallel()
	empty := ""
	_, err := ParseBucket(companyValue, itemAValue, productTypeValue, warehouseAValue, unitKilogram, &empty, nil)
	if !errors.Is(err, ErrInvalidDimension) {
		test.Fatalf(errorMismatchMessage, ErrInvalidDimension, err)
	}
}

func TestNewBucketRequiresIdentity(test *testing.T) {
	test.Parallel()
	_, err := NewBucket(CompanyID{}, mustItemID(test, itemAValue), mustProductTypeID(test, productTypeValue), mustWarehouseID(test, warehouseAValue), mustUnit(test, unitKilogram), NoDimension(), NoDimension())
	if !errors.Is(err, ErrInvalidBucket) || !errors.Is(err, ErrInvalidCompanyID) {
		test.Fatalf("expected invalid bucket for missing company, got %v", err)
	}
}

func TestQuantityConstructors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		build   func() (Quantity, error)
		wantErr error
	}{
		{name: "zero string", build: func() (Quantity, error) { return ParseQuantity("0") }, wantErr: ErrInvalidQuantity},
		{name: "garbage", build: func() (Quantity, error) { return ParseQuantity("ten") }, wantErr: ErrInvalidQuantity},
		{name: "nan", build: func() (Quantity, error) { return QuantityFromFloat(math.NaN()) }, wantErr: ErrInvalidQuantity},
		{name: "infinity", build: func() (Quantity, error) { return QuantityFromFloat(math.Inf(-1)) }, wantErr: ErrInvalidQuantity},
		{name: "negative positive", build: func() (Quantity, error) { return NewPositiveQuantity(decimal.NewFromInt(-1)) }, wantErr: ErrInvalidQuantity},
		{name: "fraction", build: func() (Quantity, error) { return ParseQuantity("0.125") }},
		{name: "negative", build: func() (Quantity, error) { return QuantityFromFloat(-2.5) }},
		{name: "finest scale", build: func() (Quantity, error) { return ParseQuantity("0.000001") }},
		{name: "trailing zeros", build: func() (Quantity, error) { return ParseQuantity("1.50000000") }},
		{name: "below scale", build: func() (Quantity, error) { return ParseQuantity("0.0000004") }, wantErr: ErrInvalidQuantity},
		{name: "below scale positive", build: func() (Quantity, error) { return NewPositiveQuantity(decimal.RequireFromString("2.1234567")) }, wantErr: ErrInvalidQuantity},
		{name: "below scale float", build: func() (Quantity, error) { return QuantityFromFloat(-0.1234567) }, wantErr: ErrInvalidQuantity},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, err := testCase.build()
			if testCase.wantErr == nil && err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				test.Fatalf(errorMismatchMessage, testCase.wantErr, err)
			}
		})
	}
}

func TestParseMovementKind(test *testing.T) {
	test.Parallel()
	kind, err := ParseMovementKind(" receipt ")
	if err != nil || kind != MovementReceipt {
		test.Fatalf("expected RECEIPT, got %q (%v)", kind, err)
	}
	if _, err := ParseMovementKind("SHRINKAGE"); !errors.Is(err, ErrInvalidMovementKind) {
		test.Fatalf(errorMismatchMessage, ErrInvalidMovementKind, err)
	}
}

func TestNewEntryInputValidation(test *testing.T) {
	test.Parallel()
	bucket := mustBucket(test, itemAValue, warehouseAValue)
	actor := mustActorID(test, actorValue)
	quantity := mustQuantity(test, "5")
	testCases := []struct {
		name     string
		bucket   Bucket
		quantity Quantity
		kind     MovementKind
		wantErr  error
	}{
		{name: "zero quantity", bucket: bucket, quantity: Quantity{}, kind: MovementReceipt, wantErr: ErrInvalidQuantity},
		{name: "unknown kind", bucket: bucket, quantity: quantity, kind: MovementKind("LOSS"), wantErr: ErrInvalidMovementKind},
		{name: "missing bucket", bucket: Bucket{}, quantity: quantity, kind: MovementReceipt, wantErr: ErrInvalidBucket},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, err := NewEntryInput(testCase.bucket, testCase.quantity, testCase.kind, Reference{}, "", actor, fixedNow, fixedNow)
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf(errorMismatchMessage, testCase.wantErr, err)
			}
		})
	}

	input, err := NewEntryInput(bucket, quantity, MovementReceipt, Reference{}, " note ", actor, fixedNow.Add(-time.Hour), fixedNow)
	if err != nil {
		test.Fatalf("entry input: %v", err)
	}
	if input.Note() != "note" || !input.EffectiveAt().Equal(fixedNow.Add(-time.Hour)) {
		test.Fatalf("unexpected entry input: %+v", input)
	}
}

func TestReferenceAndOverride(test *testing.T) {
	test.Parallel()
	if _, err := NewReference("", "PO-1"); !errors.Is(err, ErrInvalidReferenceType) {
		test.Fatalf(errorMismatchMessage, ErrInvalidReferenceType, err)
	}
	if (AdministrativeOverride{}).Granted() {
		test.Fatalf("zero override must not be granted")
	}
	if _, err := GrantAdministrativeOverride(" "); !errors.Is(err, ErrInvalidOverride) {
		test.Fatalf(errorMismatchMessage, ErrInvalidOverride, err)
	}
	override, err := GrantAdministrativeOverride("fix typo")
	if err != nil || !override.Granted() || override.Reason() != "fix typo" {
		test.Fatalf("unexpected override %+v (%v)", override, err)
	}
}

func TestNewSnapshotDerivesAvailable(test *testing.T) {
	test.Parallel()
	bucket := mustBucket(test, itemAValue, warehouseAValue)
	snapshot, err := NewSnapshot(bucket, mustQuantity(test, "70").Decimal(), mustQuantity(test, "20").Decimal(), fixedNow)
	if err != nil {
		test.Fatalf("snapshot: %v", err)
	}
	requireQuantity(test, "available", "50", snapshot.Available)
	if _, err := NewSnapshot(bucket, mustQuantity(test, "1").Decimal(), mustQuantity(test, "-1").Decimal(), fixedNow); !errors.Is(err, ErrInvalidBalance) {
		test.Fatalf(errorMismatchMessage, ErrInvalidBalance, err)
	}
}
