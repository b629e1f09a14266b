package main

import (
	"context"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
)

// scopeFlags are the optional bucket filters of the read commands.
type scopeFlags struct {
	movementFlags
	productType string
}

func (values *scopeFlags) bind(cmd *cobra.Command) {
	values.bindLocator(cmd)
	cmd.Flags().StringVar(&values.productType, "product-type", "", "product type id")
	cmd.Flags().Lookup(flagItem).Usage = "item id"
	cmd.Flags().Lookup(flagWarehouse).Usage = "warehouse id"
	cmd.Flags().Lookup(flagUnit).Usage = "unit of measure"
	cmd.Flags().Lookup(flagBin).Usage = "bin location; pass an empty value to match buckets without a bin"
	cmd.Flags().Lookup(flagBatchNo).Usage = "batch number; pass an empty value to match buckets without one"
}

func (values *scopeFlags) snapshotFilter(cmd *cobra.Command) (inventory.SnapshotFilter, error) {
	filter := inventory.SnapshotFilter{}
	var err error
	if filter.CompanyID, err = inventory.NewCompanyID(values.company); err != nil {
		return filter, err
	}
	if values.item != "" {
		if filter.ItemID, err = inventory.NewItemID(values.item); err != nil {
			return filter, err
		}
	}
	if values.productType != "" {
		if filter.ProductTypeID, err = inventory.NewProductTypeID(values.productType); err != nil {
			return filter, err
		}
	}
	if values.warehouse != "" {
		if filter.WarehouseID, err = inventory.NewWarehouseID(values.warehouse); err != nil {
			return filter, err
		}
	}
	if values.unit != "" {
		if filter.Unit, err = inventory.NewUnitOfMeasure(values.unit); err != nil {
			return filter, err
		}
	}
	if filter.Bin, err = dimensionFilter(cmd, flagBin, values.bin); err != nil {
		return filter, err
	}
	if filter.BatchNo, err = dimensionFilter(cmd, flagBatchNo, values.batchNo); err != nil {
		return filter, err
	}
	return filter, nil
}

func dimensionFilter(cmd *cobra.Command, flagName string, raw string) (inventory.DimensionFilter, error) {
	if !cmd.Flags().Changed(flagName) {
		return inventory.AnyDimension(), nil
	}
	dimension, err := optionalDimension(raw)
	if err != nil {
		return inventory.DimensionFilter{}, err
	}
	return inventory.MatchDimension(dimension), nil
}

func newSnapshotCommand() *cobra.Command {
	values := &scopeFlags{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List bucket snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := values.snapshotFilter(cmd)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				snapshots, err := runtime.Inventory.Snapshots(ctx, filter)
				if err != nil {
					return err
				}
				views := make([]snapshotView, 0, len(snapshots))
				for _, snapshot := range snapshots {
					views = append(views, newSnapshotView(snapshot))
				}
				return printJSON(cmd, views)
			})
		},
	}
	values.bind(cmd)
	return cmd
}

func newLedgerCommand() *cobra.Command {
	values := &scopeFlags{}
	var (
		kind          string
		referenceType string
		referenceID   string
		from          string
		to            string
		limit         int
		order         string
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := values.snapshotFilter(cmd)
			if err != nil {
				return err
			}
			filter := inventory.LedgerFilter{
				CompanyID:     scope.CompanyID,
				ItemID:        scope.ItemID,
				ProductTypeID: scope.ProductTypeID,
				WarehouseID:   scope.WarehouseID,
				Unit:          scope.Unit,
				Bin:           scope.Bin,
				BatchNo:       scope.BatchNo,
				ReferenceType: referenceType,
				ReferenceID:   referenceID,
				Limit:         limit,
				Order:         inventory.SortOrder(order),
			}
			if kind != "" {
				if filter.Kind, err = inventory.ParseMovementKind(kind); err != nil {
					return err
				}
			}
			if filter.From, err = parseOptionalTime(from); err != nil {
				return err
			}
			if filter.To, err = parseOptionalTime(to); err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				entries, err := runtime.Inventory.Ledger(ctx, filter)
				if err != nil {
					return err
				}
				views := make([]entryView, 0, len(entries))
				for _, entry := range entries {
					views = append(views, newEntryView(entry))
				}
				return printJSON(cmd, views)
			})
		},
	}
	values.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "movement kind: RECEIPT, ISSUE, TRANSFER, ADJUST or REPACK")
	cmd.Flags().StringVar(&referenceType, flagReferenceType, "", "reference type")
	cmd.Flags().StringVar(&referenceID, flagReferenceID, "", "reference id")
	cmd.Flags().StringVar(&from, "from", "", "earliest effective time (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest effective time (RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", inventory.DefaultLedgerLimit, "maximum entries")
	cmd.Flags().StringVar(&order, "order", string(inventory.SortDescending), "asc or desc by effective time")
	return cmd
}

func newAmendCommand() *cobra.Command {
	var entry, note, reason string
	cmd := &cobra.Command{
		Use:   "amend",
		Short: "Correct the note of a ledger entry under an administrative override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := inventory.NewEntryID(entry)
			if err != nil {
				return err
			}
			override, err := inventory.GrantAdministrativeOverride(reason)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				if err := runtime.Inventory.AmendLedgerNote(ctx, entryID, note, override); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"entry_id": entryID.String(), "status": "amended"})
			})
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "", "ledger entry id (required)")
	cmd.Flags().StringVar(&note, flagNote, "", "replacement note")
	cmd.Flags().StringVar(&reason, "reason", "", "override reason, recorded in logs (required)")
	return cmd
}
