package main

import (
	"context"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
)

type stockOperation func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error)

func newStockCommand(use string, short string, operation stockOperation) (*cobra.Command, *movementFlags) {
	values := &movementFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := values.stockRequest()
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				result, err := operation(ctx, runtime.Inventory, request)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	values.bindLocator(cmd)
	values.bindMovement(cmd)
	return cmd, values
}

func newReceiveCommand() *cobra.Command {
	cmd, _ := newStockCommand("receive", "Post a receipt into a bucket", func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error) {
		result, err := service.Receive(ctx, request)
		return newMovementView(result), err
	})
	return cmd
}

func newIssueCommand() *cobra.Command {
	cmd, _ := newStockCommand("issue", "Issue stock out of a bucket", func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error) {
		result, err := service.Issue(ctx, request)
		return newMovementView(result), err
	})
	return cmd
}

func newAdjustCommand() *cobra.Command {
	var allowNegative bool
	cmd, _ := newStockCommand("adjust", "Post a signed stock adjustment", func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error) {
		result, err := service.Adjust(ctx, request, !allowNegative)
		return newMovementView(result), err
	})
	cmd.Flags().BoolVar(&allowNegative, "allow-negative", false, "let the adjustment take on-hand below zero")
	return cmd
}

func newReserveCommand() *cobra.Command {
	cmd, _ := newStockCommand("reserve", "Reserve available stock", func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error) {
		snapshot, err := service.Reserve(ctx, request)
		return newSnapshotView(snapshot), err
	})
	return cmd
}

func newReleaseCommand() *cobra.Command {
	cmd, _ := newStockCommand("release", "Release reserved stock", func(ctx context.Context, service *inventory.Service, request inventory.StockRequest) (any, error) {
		snapshot, err := service.Release(ctx, request)
		return newSnapshotView(snapshot), err
	})
	return cmd
}

func newTransferCommand() *cobra.Command {
	values := &movementFlags{}
	var destination string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move stock between two warehouses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := values.locator()
			if err != nil {
				return err
			}
			toWarehouseID, err := inventory.NewWarehouseID(destination)
			if err != nil {
				return err
			}
			details, err := values.details()
			if err != nil {
				return err
			}
			request := inventory.TransferRequest{
				CompanyID:       source.CompanyID,
				ItemID:          source.ItemID,
				FromWarehouseID: source.WarehouseID,
				ToWarehouseID:   toWarehouseID,
				Unit:            source.Unit,
				Bin:             source.Bin,
				BatchNo:         source.BatchNo,
				Quantity:        details.Quantity,
				Actor:           details.Actor,
				Note:            details.Note,
				Reference:       details.Reference,
				EffectiveAt:     details.EffectiveAt,
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				result, err := runtime.Inventory.Transfer(ctx, request)
				if err != nil {
					return err
				}
				return printJSON(cmd, legsView{Out: newMovementView(result.Out), In: newMovementView(result.In)})
			})
		},
	}
	values.bindLocator(cmd)
	values.bindMovement(cmd)
	cmd.Flags().StringVar(&destination, "to-warehouse", "", "destination warehouse id (required)")
	return cmd
}

func newRepackCommand() *cobra.Command {
	values := &movementFlags{}
	var targetItem string
	cmd := &cobra.Command{
		Use:   "repack",
		Short: "Convert stock of one item into another item of the same product type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := inventory.NewCompanyID(values.company)
			if err != nil {
				return err
			}
			fromItemID, err := inventory.NewItemID(values.item)
			if err != nil {
				return err
			}
			toItemID, err := inventory.NewItemID(targetItem)
			if err != nil {
				return err
			}
			warehouseID, err := inventory.NewWarehouseID(values.warehouse)
			if err != nil {
				return err
			}
			var unit inventory.UnitOfMeasure
			if values.unit != "" {
				if unit, err = inventory.NewUnitOfMeasure(values.unit); err != nil {
					return err
				}
			}
			bin, err := optionalDimension(values.bin)
			if err != nil {
				return err
			}
			batchNo, err := optionalDimension(values.batchNo)
			if err != nil {
				return err
			}
			details, err := values.details()
			if err != nil {
				return err
			}
			request := inventory.RepackRequest{
				CompanyID:   companyID,
				FromItemID:  fromItemID,
				ToItemID:    toItemID,
				WarehouseID: warehouseID,
				Unit:        unit,
				Bin:         bin,
				BatchNo:     batchNo,
				Quantity:    details.Quantity,
				Actor:       details.Actor,
				Note:        details.Note,
				Reference:   details.Reference,
				EffectiveAt: details.EffectiveAt,
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				result, err := runtime.Inventory.Repack(ctx, request)
				if err != nil {
					return err
				}
				return printJSON(cmd, legsView{Out: newMovementView(result.Out), In: newMovementView(result.In)})
			})
		},
	}
	values.bindLocator(cmd)
	values.bindMovement(cmd)
	cmd.Flags().StringVar(&targetItem, "to-item", "", "target item id (required)")
	cmd.Flags().Lookup(flagUnit).Usage = "unit of measure (defaults to the items' declared unit)"
	return cmd
}
