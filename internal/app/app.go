// Package app wires configuration, storage and services for the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/internal/config"
	"github.com/MarkoPoloResearchLab/stockledger/internal/consumption"
	"github.com/MarkoPoloResearchLab/stockledger/internal/metrics"
	"github.com/MarkoPoloResearchLab/stockledger/internal/oplog"
	"github.com/MarkoPoloResearchLab/stockledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/stockledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Backend is the storage surface both adapters provide.
type Backend interface {
	inventory.Store
	inventory.Catalog
	consumption.BatchStore
	RegisterItem(ctx context.Context, item inventory.Item) error
	RegisterWarehouse(ctx context.Context, companyID inventory.CompanyID, warehouseID inventory.WarehouseID, name string) error
}

// Runtime holds the wired services of one command invocation.
type Runtime struct {
	Config      config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	Backend     Backend
	Inventory   *inventory.Service
	Consumption *consumption.Service

	migrate func(ctx context.Context) error
	close   func()
}

// NewLogger builds a production zap logger writing to stderr at level.
func NewLogger(level zapcore.Level) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(level)
	loggerConfig.OutputPaths = []string{"stderr"}
	return loggerConfig.Build()
}

// Open connects to the configured database, resolves transaction support
// once and wires the services.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runtime := &Runtime{Config: cfg, Logger: logger, Metrics: metrics.NewRecorder()}
	var err error
	switch cfg.Driver {
	case config.DriverPGX:
		err = runtime.openPGX(ctx)
	default:
		err = runtime.openGORM(ctx)
	}
	if err != nil {
		return nil, err
	}
	service, err := inventory.NewService(runtime.Backend, runtime.Backend, time.Now,
		inventory.WithOperationLogger(oplog.New(logger)),
		inventory.WithOperationLogger(runtime.Metrics),
	)
	if err != nil {
		runtime.Close()
		return nil, err
	}
	runtime.Inventory = service
	consumer, err := consumption.NewService(service, runtime.Backend, time.Now)
	if err != nil {
		runtime.Close()
		return nil, err
	}
	runtime.Consumption = consumer
	logger.Debug("storage ready",
		zap.String("driver", cfg.Driver),
		zap.String("transaction_mode", string(cfg.TransactionMode)),
		zap.Bool("transactional", service.Transactional()),
	)
	return runtime, nil
}

func (runtime *Runtime) openGORM(ctx context.Context) error {
	db, backend, err := openGORM(runtime.Config.DatabaseURL, runtime.Logger.Core().Enabled(zapcore.DebugLevel))
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	runtime.close = func() { _ = sqlDB.Close() }
	probe := gormstore.New(db.WithContext(ctx))
	transactional, err := inventory.ResolveTransactionSupport(ctx, runtime.Config.TransactionMode, probe.ProbeTransactions)
	if err != nil {
		runtime.Close()
		return err
	}
	runtime.Backend = gormstore.New(db, gormstore.WithTransactions(transactional))
	runtime.migrate = func(ctx context.Context) error {
		return gormstore.Migrate(db.WithContext(ctx))
	}
	runtime.Logger.Debug("gorm backend opened", zap.String("backend", backend))
	return nil
}

func (runtime *Runtime) openPGX(ctx context.Context) error {
	pool, err := pgstore.NewPool(ctx, runtime.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	runtime.close = pool.Close
	probe := pgstore.New(pool)
	transactional, err := inventory.ResolveTransactionSupport(ctx, runtime.Config.TransactionMode, probe.ProbeTransactions)
	if err != nil {
		runtime.Close()
		return err
	}
	runtime.Backend = pgstore.New(pool, pgstore.WithTransactions(transactional))
	runtime.migrate = func(ctx context.Context) error {
		return pgstore.Migrate(ctx, pool)
	}
	return nil
}

// Migrate creates or updates the schema of the configured backend.
func (runtime *Runtime) Migrate(ctx context.Context) error {
	if runtime.migrate == nil {
		return fmt.Errorf("no backend to migrate")
	}
	return runtime.migrate(ctx)
}

// Close releases the database connection.
func (runtime *Runtime) Close() {
	if runtime.close != nil {
		runtime.close()
		runtime.close = nil
	}
}
