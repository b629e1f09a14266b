package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// batchFile is the JSON document accepted by the consume command.
type batchFile struct {
	CompanyID  string          `json:"company_id"`
	Code       string          `json:"code"`
	ActorID    string          `json:"actor_id"`
	Multiplier decimal.Decimal `json:"multiplier"`
	ProducedAt string          `json:"produced_at"`
	Lines      []batchFileLine `json:"lines"`
}

type batchFileLine struct {
	ItemID      string          `json:"item_id"`
	WarehouseID string          `json:"warehouse_id"`
	Bin         string          `json:"bin"`
	BatchNo     string          `json:"batch_no"`
	StockUnit   string          `json:"stock_unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

func (document batchFile) request() (consumption.BatchRequest, error) {
	companyID, err := inventory.NewCompanyID(document.CompanyID)
	if err != nil {
		return consumption.BatchRequest{}, err
	}
	actor, err := inventory.NewActorID(document.ActorID)
	if err != nil {
		return consumption.BatchRequest{}, err
	}
	producedAt, err := parseOptionalTime(document.ProducedAt)
	if err != nil {
		return consumption.BatchRequest{}, err
	}
	request := consumption.BatchRequest{
		CompanyID:  companyID,
		Code:       document.Code,
		Actor:      actor,
		Multiplier: document.Multiplier,
		ProducedAt: producedAt,
		Lines:      make([]consumption.Line, 0, len(document.Lines)),
	}
	for index, raw := range document.Lines {
		line, err := raw.line()
		if err != nil {
			return consumption.BatchRequest{}, fmt.Errorf("line %d: %w", index+1, err)
		}
		request.Lines = append(request.Lines, line)
	}
	return request, nil
}

func (raw batchFileLine) line() (consumption.Line, error) {
	itemID, err := inventory.NewItemID(raw.ItemID)
	if err != nil {
		return consumption.Line{}, err
	}
	warehouseID, err := inventory.NewWarehouseID(raw.WarehouseID)
	if err != nil {
		return consumption.Line{}, err
	}
	stockUnit, err := inventory.NewUnitOfMeasure(raw.StockUnit)
	if err != nil {
		return consumption.Line{}, err
	}
	bin, err := optionalDimension(raw.Bin)
	if err != nil {
		return consumption.Line{}, err
	}
	batchNo, err := optionalDimension(raw.BatchNo)
	if err != nil {
		return consumption.Line{}, err
	}
	return consumption.Line{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Bin:         bin,
		BatchNo:     batchNo,
		StockUnit:   stockUnit,
		Quantity:    raw.Quantity,
		Unit:        raw.Unit,
	}, nil
}

func readBatchFile(path string) (consumption.BatchRequest, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return consumption.BatchRequest{}, err
	}
	var document batchFile
	if err := json.Unmarshal(contents, &document); err != nil {
		return consumption.BatchRequest{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return document.request()
}

func newConsumeCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Record a production batch and issue the materials it consumed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readBatchFile(path)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				batch, results, err := runtime.Consumption.RecordBatch(ctx, request)
				if err != nil {
					return err
				}
				return printJSON(cmd, newBatchView(batch, results))
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "batch JSON document (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
