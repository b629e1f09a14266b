package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorSubjectItem      = "item"
	errorSubjectWarehouse = "warehouse"
	errorCodeLookup       = "lookup"
	errorCodeRegister     = "register"
)

// LookupItem implements inventory.Catalog.
func (store *Store) LookupItem(ctx context.Context, companyID inventory.CompanyID, itemID inventory.ItemID) (inventory.Item, error) {
	var row Item
	err := store.db.WithContext(ctx).
		Where("company_id = ? AND item_id = ?", companyID.String(), itemID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, inventory.ErrItemNotFound)
	}
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, err)
	}
	productTypeID, err := inventory.NewProductTypeID(row.ProductTypeID)
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeInvalid, err)
	}
	unit, err := inventory.DimensionFromPointer(row.Unit)
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeInvalid, err)
	}
	return inventory.Item{CompanyID: companyID, ItemID: itemID, ProductTypeID: productTypeID, Unit: unit}, nil
}

// LookupWarehouse implements inventory.Catalog.
func (store *Store) LookupWarehouse(ctx context.Context, companyID inventory.CompanyID, warehouseID inventory.WarehouseID) error {
	var row Warehouse
	err := store.db.WithContext(ctx).
		Where("company_id = ? AND warehouse_id = ?", companyID.String(), warehouseID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStoreError(errorSubjectWarehouse, errorCodeLookup, inventory.ErrBucketNotFound)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWarehouse, errorCodeLookup, err)
	}
	return nil
}

// RegisterItem creates or updates a catalog item.
func (store *Store) RegisterItem(ctx context.Context, item inventory.Item) error {
	if item.CompanyID.IsZero() || item.ItemID.IsZero() || item.ProductTypeID.IsZero() {
		return wrapStoreError(errorSubjectItem, errorCodeRegister, inventory.ErrInvalidItemID)
	}
	row := Item{
		CompanyID:     item.CompanyID.String(),
		ItemID:        item.ItemID.String(),
		ProductTypeID: item.ProductTypeID.String(),
		Unit:          item.Unit.Pointer(),
		CreatedAt:     store.now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_type_id", "unit"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectItem, errorCodeRegister, err)
	}
	return nil
}

// RegisterWarehouse creates or renames a catalog warehouse.
func (store *Store) RegisterWarehouse(ctx context.Context, companyID inventory.CompanyID, warehouseID inventory.WarehouseID, name string) error {
	if companyID.IsZero() || warehouseID.IsZero() {
		return wrapStoreError(errorSubjectWarehouse, errorCodeRegister, inventory.ErrInvalidWarehouseID)
	}
	row := Warehouse{
		CompanyID:   companyID.String(),
		WarehouseID: warehouseID.String(),
		Name:        name,
		CreatedAt:   store.now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "warehouse_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectWarehouse, errorCodeRegister, err)
	}
	return nil
}
