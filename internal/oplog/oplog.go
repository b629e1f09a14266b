// Package oplog writes inventory operation callbacks to a zap logger.
package oplog

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"go.uber.org/zap"
)

// Logger implements inventory.OperationLogger.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger; a nil zap logger discards everything.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("inventory")}
}

// LogOperation logs successful operations at info and failures at warn.
func (operationLogger *Logger) LogOperation(_ context.Context, entry inventory.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("strategy", entry.Strategy),
		zap.String("company_id", entry.CompanyID.String()),
	}
	if !entry.ItemID.IsZero() {
		fields = append(fields, zap.String("item_id", entry.ItemID.String()))
	}
	if !entry.WarehouseID.IsZero() {
		fields = append(fields, zap.String("warehouse_id", entry.WarehouseID.String()))
	}
	if entry.Kind != "" {
		fields = append(fields, zap.String("kind", entry.Kind.String()))
	}
	if !entry.Quantity.IsZero() {
		fields = append(fields, zap.String("quantity", entry.Quantity.String()))
	}
	if entry.Actor.String() != "" {
		fields = append(fields, zap.String("actor_id", entry.Actor.String()))
	}
	if entry.Reference.Type != "" {
		fields = append(fields, zap.String("reference_type", entry.Reference.Type), zap.String("reference_id", entry.Reference.ID))
	}
	if entry.Error == nil {
		operationLogger.logger.Info("inventory operation", fields...)
		return
	}
	var operationError inventory.OperationError
	if errors.As(entry.Error, &operationError) {
		fields = append(fields, zap.String("error_code", operationError.Operation()+"."+operationError.Subject()+"."+operationError.Code()))
	}
	fields = append(fields, zap.Error(entry.Error))
	operationLogger.logger.Warn("inventory operation failed", fields...)
}
