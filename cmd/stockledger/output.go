package main

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
)

type bucketView struct {
	CompanyID     string  `json:"company_id"`
	ItemID        string  `json:"item_id"`
	ProductTypeID string  `json:"product_type_id"`
	WarehouseID   string  `json:"warehouse_id"`
	Bin           *string `json:"bin,omitempty"`
	BatchNo       *string `json:"batch_no,omitempty"`
	Unit          string  `json:"unit"`
}

type snapshotView struct {
	bucketView
	OnHand    string    `json:"on_hand"`
	Reserved  string    `json:"reserved"`
	Available string    `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

type entryView struct {
	EntryID string `json:"entry_id"`
	bucketView
	Quantity      string    `json:"quantity"`
	Kind          string    `json:"kind"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	Note          string    `json:"note,omitempty"`
	ActorID       string    `json:"actor_id"`
	EffectiveAt   time.Time `json:"effective_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type movementView struct {
	Entry    entryView    `json:"entry"`
	Snapshot snapshotView `json:"snapshot"`
}

type legsView struct {
	Out movementView `json:"out"`
	In  movementView `json:"in"`
}

type discrepancyView struct {
	bucketView
	LedgerTotal string `json:"ledger_total"`
	OnHand      string `json:"on_hand"`
}

type batchView struct {
	BatchID    string         `json:"batch_id"`
	CompanyID  string         `json:"company_id"`
	Code       string         `json:"code"`
	Multiplier string         `json:"multiplier"`
	TotalGrams string         `json:"total_grams"`
	ProducedAt time.Time      `json:"produced_at"`
	Movements  []movementView `json:"movements"`
}

func newBucketView(bucket inventory.Bucket) bucketView {
	return bucketView{
		CompanyID:     bucket.CompanyID().String(),
		ItemID:        bucket.ItemID().String(),
		ProductTypeID: bucket.ProductTypeID().String(),
		WarehouseID:   bucket.WarehouseID().String(),
		Bin:           bucket.Bin().Pointer(),
		BatchNo:       bucket.BatchNo().Pointer(),
		Unit:          bucket.Unit().String(),
	}
}

func newSnapshotView(snapshot inventory.Snapshot) snapshotView {
	return snapshotView{
		bucketView: newBucketView(snapshot.Bucket),
		OnHand:     snapshot.OnHand.String(),
		Reserved:   snapshot.Reserved.String(),
		Available:  snapshot.Available.String(),
		UpdatedAt:  snapshot.UpdatedAt,
	}
}

func newEntryView(entry inventory.LedgerEntry) entryView {
	return entryView{
		EntryID:       entry.EntryID.String(),
		bucketView:    newBucketView(entry.Bucket),
		Quantity:      entry.Quantity.String(),
		Kind:          entry.Kind.String(),
		ReferenceType: entry.Reference.Type,
		ReferenceID:   entry.Reference.ID,
		Note:          entry.Note,
		ActorID:       entry.Actor.String(),
		EffectiveAt:   entry.EffectiveAt,
		CreatedAt:     entry.CreatedAt,
	}
}

func newMovementView(result inventory.MovementResult) movementView {
	return movementView{Entry: newEntryView(result.Entry), Snapshot: newSnapshotView(result.Snapshot)}
}

func newMovementViews(results []inventory.MovementResult) []movementView {
	views := make([]movementView, 0, len(results))
	for _, result := range results {
		views = append(views, newMovementView(result))
	}
	return views
}

func newBatchView(batch consumption.Batch, results []inventory.MovementResult) batchView {
	return batchView{
		BatchID:    batch.BatchID,
		CompanyID:  batch.CompanyID.String(),
		Code:       batch.Code,
		Multiplier: batch.Multiplier.String(),
		TotalGrams: batch.TotalGrams.String(),
		ProducedAt: batch.ProducedAt,
		Movements:  newMovementViews(results),
	}
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
