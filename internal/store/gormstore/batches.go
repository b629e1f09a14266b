package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	errorSubjectBatch = "batch"
	errorCodeCreate   = "create"
	errorCodeDelete   = "delete"
	errorCodeDecode   = "decode"
	errorCodeGet      = "get"
)

// CreateBatch implements consumption.BatchStore.
func (store *Store) CreateBatch(ctx context.Context, batch consumption.Batch) (consumption.Batch, error) {
	lines, err := consumption.EncodeLines(batch.Lines)
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, err)
	}
	row := ProductionBatch{
		BatchID:    batch.BatchID,
		CompanyID:  batch.CompanyID.String(),
		Code:       batch.Code,
		Multiplier: batch.Multiplier,
		TotalGrams: batch.TotalGrams,
		Lines:      datatypes.JSON(lines),
		ActorID:    batch.Actor.String(),
		ProducedAt: batch.ProducedAt.UTC(),
		CreatedAt:  batch.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = store.now().UTC()
	}
	err = store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, consumption.ErrDuplicateBatch)
	}
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, err)
	}
	batch.BatchID = row.BatchID
	batch.CreatedAt = row.CreatedAt
	return batch, nil
}

// DeleteBatch implements consumption.BatchStore.
func (store *Store) DeleteBatch(ctx context.Context, batchID string) error {
	result := store.db.WithContext(ctx).Where("batch_id = ?", batchID).Delete(&ProductionBatch{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBatch, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBatch, errorCodeDelete, consumption.ErrBatchNotFound)
	}
	return nil
}

// GetBatch implements consumption.BatchStore.
func (store *Store) GetBatch(ctx context.Context, companyID inventory.CompanyID, code string) (consumption.Batch, error) {
	var row ProductionBatch
	err := store.db.WithContext(ctx).
		Where("company_id = ? AND code = ?", companyID.String(), code).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, consumption.ErrBatchNotFound)
	}
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, err)
	}
	lines, err := consumption.DecodeLines(row.Lines)
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeDecode, err)
	}
	actor, err := inventory.NewActorID(row.ActorID)
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeDecode, err)
	}
	return consumption.Batch{
		BatchID:    row.BatchID,
		CompanyID:  companyID,
		Code:       row.Code,
		Multiplier: row.Multiplier,
		TotalGrams: row.TotalGrams,
		Lines:      lines,
		Actor:      actor,
		ProducedAt: row.ProducedAt.UTC(),
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}
