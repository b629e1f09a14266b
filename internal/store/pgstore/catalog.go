package pgstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/jackc/pgx/v5"
)

const (
	errorSubjectItem      = "item"
	errorSubjectWarehouse = "warehouse"
	errorCodeLookup       = "lookup"
	errorCodeRegister     = "register"

	sqlSelectItem      = `select product_type_id, unit from inventory_items where company_id = $1 and item_id = $2`
	sqlSelectWarehouse = `select 1 from inventory_warehouses where company_id = $1 and warehouse_id = $2`

	sqlUpsertItem = `
		insert into inventory_items(company_id, item_id, product_type_id, unit, created_at)
		values($1, $2, $3, $4, $5)
		on conflict (company_id, item_id) do update set
			product_type_id = excluded.product_type_id,
			unit = excluded.unit
	`

	sqlUpsertWarehouse = `
		insert into inventory_warehouses(company_id, warehouse_id, name, created_at)
		values($1, $2, $3, $4)
		on conflict (company_id, warehouse_id) do update set name = excluded.name
	`
)

// LookupItem implements inventory.Catalog.
func (store *Store) LookupItem(ctx context.Context, companyID inventory.CompanyID, itemID inventory.ItemID) (inventory.Item, error) {
	var (
		productTypeValue string
		unitValue        *string
	)
	err := store.db.QueryRow(ctx, sqlSelectItem, companyID.String(), itemID.String()).Scan(&productTypeValue, &unitValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, inventory.ErrItemNotFound)
	}
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, err)
	}
	productTypeID, err := inventory.NewProductTypeID(productTypeValue)
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeInvalid, err)
	}
	unit, err := inventory.DimensionFromPointer(unitValue)
	if err != nil {
		return inventory.Item{}, wrapStoreError(errorSubjectItem, errorCodeInvalid, err)
	}
	return inventory.Item{CompanyID: companyID, ItemID: itemID, ProductTypeID: productTypeID, Unit: unit}, nil
}

// LookupWarehouse implements inventory.Catalog.
func (store *Store) LookupWarehouse(ctx context.Context, companyID inventory.CompanyID, warehouseID inventory.WarehouseID) error {
	var found int
	err := store.db.QueryRow(ctx, sqlSelectWarehouse, companyID.String(), warehouseID.String()).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := store.db.Exec(ctx, sqlUpsertItem,
		item.CompanyID.String(),
		item.ItemID.String(),
		item.ProductTypeID.String(),
		item.Unit.Pointer(),
		store.now().UTC(),
	)
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
	if _, err := store.db.Exec(ctx, sqlUpsertWarehouse, companyID.String(), warehouseID.String(), name, store.now().UTC()); err != nil {
		return wrapStoreError(errorSubjectWarehouse, errorCodeRegister, err)
	}
	return nil
}
