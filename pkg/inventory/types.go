package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CompanyID scopes every bucket to a tenant company.
type CompanyID struct {
	value string
}

// ItemID identifies a stocked item.
type ItemID struct {
	value string
}

// ProductTypeID classifies items; repacking stays within one product type.
type ProductTypeID struct {
	value string
}

// WarehouseID identifies a storage location.
type WarehouseID struct {
	value string
}

// UnitOfMeasure is the unit a bucket is counted in.
type UnitOfMeasure struct {
	value string
}

// ActorID identifies who performed a movement.
type ActorID struct {
	value string
}

// EntryID identifies a stored ledger entry.
type EntryID struct {
	value string
}

// NewCompanyID validates and normalizes a company id.
func NewCompanyID(raw string) (CompanyID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidCompanyID)
	if err != nil {
		return CompanyID{}, err
	}
	return CompanyID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CompanyID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id CompanyID) IsZero() bool {
	return id.value == ""
}

// NewItemID validates and normalizes an item id.
func NewItemID(raw string) (ItemID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidItemID)
	if err != nil {
		return ItemID{}, err
	}
	return ItemID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ItemID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id ItemID) IsZero() bool {
	return id.value == ""
}

// NewProductTypeID validates and normalizes a product type id.
func NewProductTypeID(raw string) (ProductTypeID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidProductTypeID)
	if err != nil {
		return ProductTypeID{}, err
	}
	return ProductTypeID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ProductTypeID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id ProductTypeID) IsZero() bool {
	return id.value == ""
}

// NewWarehouseID validates and normalizes a warehouse id.
func NewWarehouseID(raw string) (WarehouseID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidWarehouseID)
	if err != nil {
		return WarehouseID{}, err
	}
	return WarehouseID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id WarehouseID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id WarehouseID) IsZero() bool {
	return id.value == ""
}

// NewUnitOfMeasure validates and normalizes a unit of measure.
func NewUnitOfMeasure(raw string) (UnitOfMeasure, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidUnit)
	if err != nil {
		return UnitOfMeasure{}, err
	}
	return UnitOfMeasure{value: trimmed}, nil
}

// String returns the normalized unit.
func (unit UnitOfMeasure) String() string {
	return unit.value
}

// IsZero reports whether the unit was never set.
func (unit UnitOfMeasure) IsZero() bool {
	return unit.value == ""
}

// NewActorID validates and normalizes an actor id.
func NewActorID(raw string) (ActorID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidActorID)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ActorID) String() string {
	return id.value
}

// NewEntryID validates and normalizes a ledger entry id.
func NewEntryID(raw string) (EntryID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidEntryID)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id EntryID) String() string {
	return id.value
}

func normalizeIdentifier(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", invalid)
	}
	return trimmed, nil
}

// Dimension is an optional bucket coordinate (bin, batch number).
// The zero value is absent; a present dimension is never empty.
type Dimension struct {
	value   string
	present bool
}

// NoDimension returns the absent dimension.
func NoDimension() Dimension {
	return Dimension{}
}

// NewDimension validates a present dimension value.
func NewDimension(raw string) (Dimension, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Dimension{}, fmt.Errorf("%w: empty value", ErrInvalidDimension)
	}
	return Dimension{value: trimmed, present: true}, nil
}

// DimensionFromPointer maps nil to absent and anything else through NewDimension.
func DimensionFromPointer(raw *string) (Dimension, error) {
	if raw == nil {
		return NoDimension(), nil
	}
	return NewDimension(*raw)
}

// Value returns the dimension value and whether it is present.
func (dimension Dimension) Value() (string, bool) {
	return dimension.value, dimension.present
}

// Present reports whether the dimension carries a value.
func (dimension Dimension) Present() bool {
	return dimension.present
}

// Pointer returns nil for an absent dimension.
func (dimension Dimension) Pointer() *string {
	if !dimension.present {
		return nil
	}
	value := dimension.value
	return &value
}

// String renders the value, or an empty string when absent.
func (dimension Dimension) String() string {
	return dimension.value
}

// Bucket is the identity of one stock balance.
type Bucket struct {
	companyID     CompanyID
	itemID        ItemID
	productTypeID ProductTypeID
	warehouseID   WarehouseID
	bin           Dimension
	batchNo       Dimension
	unit          UnitOfMeasure
}

// NewBucket validates a bucket identity.
func NewBucket(companyID CompanyID, itemID ItemID, productTypeID ProductTypeID, warehouseID WarehouseID, unit UnitOfMeasure, bin Dimension, batchNo Dimension) (Bucket, error) {
	if companyID.IsZero() {
		return Bucket{}, fmt.Errorf("%w: %w", ErrInvalidBucket, ErrInvalidCompanyID)
	}
	if itemID.IsZero() {
		return Bucket{}, fmt.Errorf("%w: %w", ErrInvalidBucket, ErrInvalidItemID)
	}
	if productTypeID.IsZero() {
		return Bucket{}, fmt.Errorf("%w: %w", ErrInvalidBucket, ErrInvalidProductTypeID)
	}
	if warehouseID.IsZero() {
		return Bucket{}, fmt.Errorf("%w: %w", ErrInvalidBucket, ErrInvalidWarehouseID)
	}
	if unit.IsZero() {
		return Bucket{}, fmt.Errorf("%w: %w", ErrInvalidBucket, ErrInvalidUnit)
	}
	return Bucket{
		companyID:     companyID,
		itemID:        itemID,
		productTypeID: productTypeID,
		warehouseID:   warehouseID,
		bin:           bin,
		batchNo:       batchNo,
		unit:          unit,
	}, nil
}

// ParseBucket builds a bucket from stored column values; nil dimensions are absent.
func ParseBucket(companyID, itemID, productTypeID, warehouseID, unit string, bin, batchNo *string) (Bucket, error) {
	company, err := NewCompanyID(companyID)
	if err != nil {
		return Bucket{}, err
	}
	item, err := NewItemID(itemID)
	if err != nil {
		return Bucket{}, err
	}
	productType, err := NewProductTypeID(productTypeID)
	if err != nil {
		return Bucket{}, err
	}
	warehouse, err := NewWarehouseID(warehouseID)
	if err != nil {
		return Bucket{}, err
	}
	unitOfMeasure, err := NewUnitOfMeasure(unit)
	if err != nil {
		return Bucket{}, err
	}
	binDimension, err := DimensionFromPointer(bin)
	if err != nil {
		return Bucket{}, err
	}
	batchDimension, err := DimensionFromPointer(batchNo)
	if err != nil {
		return Bucket{}, err
	}
	return NewBucket(company, item, productType, warehouse, unitOfMeasure, binDimension, batchDimension)
}

func (bucket Bucket) CompanyID() CompanyID         { return bucket.companyID }
func (bucket Bucket) ItemID() ItemID               { return bucket.itemID }
func (bucket Bucket) ProductTypeID() ProductTypeID { return bucket.productTypeID }
func (bucket Bucket) WarehouseID() WarehouseID     { return bucket.warehouseID }
func (bucket Bucket) Bin() Dimension               { return bucket.bin }
func (bucket Bucket) BatchNo() Dimension           { return bucket.batchNo }
func (bucket Bucket) Unit() UnitOfMeasure          { return bucket.unit }

// IsZero reports an unset bucket.
func (bucket Bucket) IsZero() bool {
	return bucket == Bucket{}
}

// WithWarehouse returns the same bucket at another warehouse.
func (bucket Bucket) WithWarehouse(warehouseID WarehouseID) Bucket {
	bucket.warehouseID = warehouseID
	return bucket
}

const bucketKeyAbsent = "-"

// Key returns a canonical encoding of the bucket identity. Every part is
// length-prefixed so separators inside values cannot collide, and absent
// dimensions encode differently from any present value.
func (bucket Bucket) Key() string {
	var builder strings.Builder
	writeKeyPart(&builder, bucket.companyID.value)
	writeKeyPart(&builder, bucket.itemID.value)
	writeKeyPart(&builder, bucket.productTypeID.value)
	writeKeyPart(&builder, bucket.warehouseID.value)
	writeKeyDimension(&builder, bucket.bin)
	writeKeyDimension(&builder, bucket.batchNo)
	writeKeyPart(&builder, bucket.unit.value)
	return builder.String()
}

// String is a human-readable bucket label.
func (bucket Bucket) String() string {
	parts := []string{bucket.companyID.value, bucket.itemID.value, bucket.warehouseID.value}
	if bin, ok := bucket.bin.Value(); ok {
		parts = append(parts, "bin="+bin)
	}
	if batchNo, ok := bucket.batchNo.Value(); ok {
		parts = append(parts, "batch="+batchNo)
	}
	parts = append(parts, bucket.unit.value)
	return strings.Join(parts, "/")
}

func writeKeyPart(builder *strings.Builder, value string) {
	builder.WriteString(strconv.Itoa(len(value)))
	builder.WriteByte(':')
	builder.WriteString(value)
	builder.WriteByte('|')
}

func writeKeyDimension(builder *strings.Builder, dimension Dimension) {
	if !dimension.present {
		builder.WriteString(bucketKeyAbsent)
		builder.WriteByte('|')
		return
	}
	writeKeyPart(builder, dimension.value)
}

// QuantityScale is the number of decimal places every store persists.
const QuantityScale int32 = 6

// Quantity is a non-zero decimal amount with at most QuantityScale decimal
// places. Its sign carries direction where the operation allows it.
type Quantity struct {
	value decimal.Decimal
}

// NewQuantity rejects zero and values finer than QuantityScale.
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	if value.IsZero() {
		return Quantity{}, fmt.Errorf("%w: must not be zero", ErrInvalidQuantity)
	}
	if err := checkQuantityScale(value); err != nil {
		return Quantity{}, err
	}
	return Quantity{value: value}, nil
}

// NewPositiveQuantity rejects zero, negative values and values finer than
// QuantityScale.
func NewPositiveQuantity(value decimal.Decimal) (Quantity, error) {
	if !value.IsPositive() {
		return Quantity{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	if err := checkQuantityScale(value); err != nil {
		return Quantity{}, err
	}
	return Quantity{value: value}, nil
}

func checkQuantityScale(value decimal.Decimal) error {
	if !value.Equal(value.Truncate(QuantityScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidQuantity, value, QuantityScale)
	}
	return nil
}

// ParseQuantity parses a decimal string.
func ParseQuantity(raw string) (Quantity, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %q is not a number", ErrInvalidQuantity, raw)
	}
	return NewQuantity(value)
}

// QuantityFromFloat converts a float, rejecting NaN and infinities.
func QuantityFromFloat(raw float64) (Quantity, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Quantity{}, fmt.Errorf("%w: not a finite number", ErrInvalidQuantity)
	}
	return NewQuantity(decimal.NewFromFloat(raw))
}

// Decimal returns the underlying value.
func (quantity Quantity) Decimal() decimal.Decimal {
	return quantity.value
}

// Negated flips the sign.
func (quantity Quantity) Negated() Quantity {
	return Quantity{value: quantity.value.Neg()}
}

// Abs drops the sign.
func (quantity Quantity) Abs() Quantity {
	return Quantity{value: quantity.value.Abs()}
}

// IsNegative reports whether the quantity decreases stock.
func (quantity Quantity) IsNegative() bool {
	return quantity.value.IsNegative()
}

// IsZero reports an unset quantity.
func (quantity Quantity) IsZero() bool {
	return quantity.value.IsZero()
}

// String renders the decimal value.
func (quantity Quantity) String() string {
	return quantity.value.String()
}

// MovementKind classifies ledger entries.
type MovementKind string

const (
	MovementReceipt  MovementKind = "RECEIPT"
	MovementIssue    MovementKind = "ISSUE"
	MovementTransfer MovementKind = "TRANSFER"
	MovementAdjust   MovementKind = "ADJUST"
	MovementRepack   MovementKind = "REPACK"
)

// ParseMovementKind validates a movement kind, accepting any letter case.
func ParseMovementKind(raw string) (MovementKind, error) {
	kind := MovementKind(strings.ToUpper(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMovementKind, raw)
	}
	return kind, nil
}

// Valid reports whether kind is one of the known movement kinds.
func (kind MovementKind) Valid() bool {
	switch kind {
	case MovementReceipt, MovementIssue, MovementTransfer, MovementAdjust, MovementRepack:
		return true
	default:
		return false
	}
}

// String returns the stored representation.
func (kind MovementKind) String() string {
	return string(kind)
}

// Reference links a movement to a document in another system.
type Reference struct {
	Type string
	ID   string
}

// NewReference trims both parts. An id without a type is rejected.
func NewReference(refType string, refID string) (Reference, error) {
	reference := Reference{Type: strings.TrimSpace(refType), ID: strings.TrimSpace(refID)}
	if reference.Type == "" && reference.ID != "" {
		return Reference{}, fmt.Errorf("%w: reference id %q without type", ErrInvalidReferenceType, reference.ID)
	}
	return reference, nil
}

// IsZero reports an unset reference.
func (reference Reference) IsZero() bool {
	return reference.Type == "" && reference.ID == ""
}

// Item is the catalog view of a stocked item.
type Item struct {
	CompanyID     CompanyID
	ItemID        ItemID
	ProductTypeID ProductTypeID
	// Unit is the item's declared unit; absent when the catalog does not fix one.
	Unit Dimension
}

// AdministrativeOverride unlocks the ledger's amend and remove paths.
// The zero value grants nothing.
type AdministrativeOverride struct {
	reason string
}

// GrantAdministrativeOverride requires a reason that ends up in logs.
func GrantAdministrativeOverride(reason string) (AdministrativeOverride, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return AdministrativeOverride{}, fmt.Errorf("%w: reason is required", ErrInvalidOverride)
	}
	return AdministrativeOverride{reason: trimmed}, nil
}

// Granted reports whether the override is active.
func (override AdministrativeOverride) Granted() bool {
	return override.reason != ""
}

// Reason returns the recorded reason.
func (override AdministrativeOverride) Reason() string {
	return override.reason
}
