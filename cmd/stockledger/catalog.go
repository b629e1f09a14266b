package main

import (
	"context"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the item and warehouse master data",
	}
	cmd.AddCommand(newAddItemCommand(), newAddWarehouseCommand())
	return cmd
}

func newAddItemCommand() *cobra.Command {
	var company, item, productType, unit string
	cmd := &cobra.Command{
		Use:   "add-item",
		Short: "Register or update a stocked item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := inventory.NewCompanyID(company)
			if err != nil {
				return err
			}
			itemID, err := inventory.NewItemID(item)
			if err != nil {
				return err
			}
			productTypeID, err := inventory.NewProductTypeID(productType)
			if err != nil {
				return err
			}
			declaredUnit, err := optionalDimension(unit)
			if err != nil {
				return err
			}
			record := inventory.Item{CompanyID: companyID, ItemID: itemID, ProductTypeID: productTypeID, Unit: declaredUnit}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				if err := runtime.Backend.RegisterItem(ctx, record); err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"company_id":      companyID.String(),
					"item_id":         itemID.String(),
					"product_type_id": productTypeID.String(),
					"unit":            declaredUnit.Pointer(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&company, flagCompany, "", "company id (required)")
	cmd.Flags().StringVar(&item, flagItem, "", "item id (required)")
	cmd.Flags().StringVar(&productType, "product-type", "", "product type id (required)")
	cmd.Flags().StringVar(&unit, flagUnit, "", "declared unit of measure")
	return cmd
}

func newAddWarehouseCommand() *cobra.Command {
	var company, warehouse, name string
	cmd := &cobra.Command{
		Use:   "add-warehouse",
		Short: "Register or rename a warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := inventory.NewCompanyID(company)
			if err != nil {
				return err
			}
			warehouseID, err := inventory.NewWarehouseID(warehouse)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				if err := runtime.Backend.RegisterWarehouse(ctx, companyID, warehouseID, name); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{
					"company_id":   companyID.String(),
					"warehouse_id": warehouseID.String(),
					"name":         name,
				})
			})
		},
	}
	cmd.Flags().StringVar(&company, flagCompany, "", "company id (required)")
	cmd.Flags().StringVar(&warehouse, flagWarehouse, "", "warehouse id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}
