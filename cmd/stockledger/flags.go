package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
)

const (
	flagCompany       = "company"
	flagItem          = "item"
	flagWarehouse     = "warehouse"
	flagUnit          = "unit"
	flagBin           = "bin"
	flagBatchNo       = "batch-no"
	flagQuantity      = "quantity"
	flagActor         = "actor"
	flagNote          = "note"
	flagReferenceType = "ref-type"
	flagReferenceID   = "ref-id"
	flagEffectiveAt   = "effective-at"
)

// movementFlags holds the raw values shared by every movement command.
type movementFlags struct {
	company       string
	item          string
	warehouse     string
	unit          string
	bin           string
	batchNo       string
	quantity      string
	actor         string
	note          string
	referenceType string
	referenceID   string
	effectiveAt   string
}

func (values *movementFlags) bindLocator(cmd *cobra.Command) {
	cmd.Flags().StringVar(&values.company, flagCompany, "", "company id (required)")
	cmd.Flags().StringVar(&values.item, flagItem, "", "item id (required)")
	cmd.Flags().StringVar(&values.warehouse, flagWarehouse, "", "warehouse id (required)")
	cmd.Flags().StringVar(&values.unit, flagUnit, "", "unit of measure (required)")
	cmd.Flags().StringVar(&values.bin, flagBin, "", "bin location")
	cmd.Flags().StringVar(&values.batchNo, flagBatchNo, "", "batch number")
}

func (values *movementFlags) bindMovement(cmd *cobra.Command) {
	cmd.Flags().StringVar(&values.quantity, flagQuantity, "", "quantity (required)")
	cmd.Flags().StringVar(&values.actor, flagActor, "", "acting user id (required)")
	cmd.Flags().StringVar(&values.note, flagNote, "", "free-form note")
	cmd.Flags().StringVar(&values.referenceType, flagReferenceType, "", "reference type, e.g. PURCHASE_ORDER")
	cmd.Flags().StringVar(&values.referenceID, flagReferenceID, "", "reference id")
	cmd.Flags().StringVar(&values.effectiveAt, flagEffectiveAt, "", "effective time (RFC3339, default now)")
}

func (values *movementFlags) locator() (inventory.StockLocator, error) {
	companyID, err := inventory.NewCompanyID(values.company)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	itemID, err := inventory.NewItemID(values.item)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	warehouseID, err := inventory.NewWarehouseID(values.warehouse)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	unit, err := inventory.NewUnitOfMeasure(values.unit)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	bin, err := optionalDimension(values.bin)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	batchNo, err := optionalDimension(values.batchNo)
	if err != nil {
		return inventory.StockLocator{}, err
	}
	return inventory.StockLocator{CompanyID: companyID, ItemID: itemID, WarehouseID: warehouseID, Unit: unit, Bin: bin, BatchNo: batchNo}, nil
}

func (values *movementFlags) stockRequest() (inventory.StockRequest, error) {
	locator, err := values.locator()
	if err != nil {
		return inventory.StockRequest{}, err
	}
	details, err := values.details()
	if err != nil {
		return inventory.StockRequest{}, err
	}
	details.StockLocator = locator
	return details, nil
}

// details parses the non-location fields into a StockRequest.
func (values *movementFlags) details() (inventory.StockRequest, error) {
	quantity, err := inventory.ParseQuantity(values.quantity)
	if err != nil {
		return inventory.StockRequest{}, err
	}
	actor, err := inventory.NewActorID(values.actor)
	if err != nil {
		return inventory.StockRequest{}, err
	}
	reference, err := inventory.NewReference(values.referenceType, values.referenceID)
	if err != nil {
		return inventory.StockRequest{}, err
	}
	effectiveAt, err := parseOptionalTime(values.effectiveAt)
	if err != nil {
		return inventory.StockRequest{}, err
	}
	return inventory.StockRequest{Quantity: quantity, Actor: actor, Note: values.note, Reference: reference, EffectiveAt: effectiveAt}, nil
}

func optionalDimension(raw string) (inventory.Dimension, error) {
	if strings.TrimSpace(raw) == "" {
		return inventory.NoDimension(), nil
	}
	return inventory.NewDimension(raw)
}

func parseOptionalTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return parsed.UTC(), nil
}
