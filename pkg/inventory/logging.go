package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing inventory operation.
type OperationLog struct {
	Operation   string
	Strategy    string
	CompanyID   CompanyID
	ItemID      ItemID
	WarehouseID WarehouseID
	Kind        MovementKind
	Quantity    decimal.Decimal
	Actor       ActorID
	Reference   Reference
	Status      string
	Error       error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
// Several loggers may be wired; each receives every entry.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		if logger != nil {
			service.loggers = append(service.loggers, logger)
		}
	}
}

// WithStrictAtomicity makes NewService refuse stores without multi-document
// transactions instead of falling back to compensation.
func WithStrictAtomicity() ServiceOption {
	return func(service *Service) {
		service.strictAtomicity = true
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if len(service.loggers) == 0 {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = StatusError
		} else {
			entry.Status = StatusOK
		}
	}
	if entry.Strategy == "" {
		entry.Strategy = service.strategyName()
	}
	for _, logger := range service.loggers {
		logger.LogOperation(ctx, entry)
	}
}
