package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	errorSubjectBatch = "batch"
	errorCodeCreate   = "create"
	errorCodeDelete   = "delete"
	errorCodeDecode   = "decode"
	errorCodeGet      = "get"

	sqlInsertBatch = `
		insert into production_batches(batch_id, company_id, code, multiplier, total_grams, lines, actor_id, produced_at, created_at)
		values($1::uuid, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	`

	sqlDeleteBatch = `delete from production_batches where batch_id = $1::uuid`

	sqlSelectBatch = `
		select batch_id::text, code, multiplier, total_grams, lines::text, actor_id, produced_at, created_at
		from production_batches
		where company_id = $1 and code = $2
	`
)

// CreateBatch implements consumption.BatchStore.
func (store *Store) CreateBatch(ctx context.Context, batch consumption.Batch) (consumption.Batch, error) {
	lines, err := consumption.EncodeLines(batch.Lines)
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, err)
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = store.now()
	}
	batch.CreatedAt = batch.CreatedAt.UTC()
	_, err = store.db.Exec(ctx, sqlInsertBatch,
		batch.BatchID,
		batch.CompanyID.String(),
		batch.Code,
		batch.Multiplier,
		batch.TotalGrams,
		string(lines),
		batch.Actor.String(),
		batch.ProducedAt.UTC(),
		batch.CreatedAt,
	)
	if isUniqueViolation(err) {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, consumption.ErrDuplicateBatch)
	}
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeCreate, err)
	}
	return batch, nil
}

// DeleteBatch implements consumption.BatchStore.
func (store *Store) DeleteBatch(ctx context.Context, batchID string) error {
	tag, err := store.db.Exec(ctx, sqlDeleteBatch, batchID)
	if err != nil {
		return wrapStoreError(errorSubjectBatch, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBatch, errorCodeDelete, consumption.ErrBatchNotFound)
	}
	return nil
}

// GetBatch implements consumption.BatchStore.
func (store *Store) GetBatch(ctx context.Context, companyID inventory.CompanyID, code string) (consumption.Batch, error) {
	var (
		batchID, codeValue, linesValue, actorValue string
		multiplier, totalGrams                     decimal.Decimal
		producedAt, createdAt                      time.Time
	)
	err := store.db.QueryRow(ctx, sqlSelectBatch, companyID.String(), code).
		Scan(&batchID, &codeValue, &multiplier, &totalGrams, &linesValue, &actorValue, &producedAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, consumption.ErrBatchNotFound)
	}
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, err)
	}
	lines, err := consumption.DecodeLines([]byte(linesValue))
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeDecode, err)
	}
	actor, err := inventory.NewActorID(actorValue)
	if err != nil {
		return consumption.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeDecode, err)
	}
	return consumption.Batch{
		BatchID:    batchID,
		CompanyID:  companyID,
		Code:       codeValue,
		Multiplier: multiplier,
		TotalGrams: totalGrams,
		Lines:      lines,
		Actor:      actor,
		ProducedAt: producedAt.UTC(),
		CreatedAt:  createdAt.UTC(),
	}, nil
}
