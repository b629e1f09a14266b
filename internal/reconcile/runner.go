// Package reconcile checks ledger sums against snapshots for a set of
// companies, once or on a schedule.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const jobName = "inventory-reconcile"

var (
	ErrNoCompanies     = errors.New("reconcile: at least one company is required")
	ErrInvalidInterval = errors.New("reconcile: interval must be positive")
	ErrMissingService  = errors.New("reconcile: reconciler is required")
)

// Reconciler is satisfied by *inventory.Service.
type Reconciler interface {
	Reconcile(ctx context.Context, companyID inventory.CompanyID) ([]inventory.Discrepancy, error)
}

// Observer receives the outcome of every company run.
type Observer interface {
	ObserveReconcile(companyID inventory.CompanyID, discrepancies int, unixSeconds int64)
}

// CompanyReport is the result of reconciling one company.
type CompanyReport struct {
	CompanyID     inventory.CompanyID
	Discrepancies []inventory.Discrepancy
}

// Runner reconciles the configured companies.
type Runner struct {
	reconciler Reconciler
	companies  []inventory.CompanyID
	logger     *zap.Logger
	observer   Observer
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(logger *zap.Logger) Option {
	return func(runner *Runner) {
		if logger != nil {
			runner.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(runner *Runner) {
		runner.observer = observer
	}
}

func WithClock(now func() time.Time) Option {
	return func(runner *Runner) {
		if now != nil {
			runner.now = now
		}
	}
}

// NewRunner validates the reconciler and company list.
func NewRunner(reconciler Reconciler, companies []inventory.CompanyID, options ...Option) (*Runner, error) {
	if reconciler == nil {
		return nil, ErrMissingService
	}
	if len(companies) == 0 {
		return nil, ErrNoCompanies
	}
	runner := &Runner{
		reconciler: reconciler,
		companies:  append([]inventory.CompanyID(nil), companies...),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	runner.logger = runner.logger.Named("reconcile")
	return runner, nil
}

// RunOnce reconciles every company. A failing company does not stop the
// others; the failures are joined into the returned error.
func (runner *Runner) RunOnce(ctx context.Context) ([]CompanyReport, error) {
	reports := make([]CompanyReport, 0, len(runner.companies))
	var failures []error
	for _, companyID := range runner.companies {
		discrepancies, err := runner.reconciler.Reconcile(ctx, companyID)
		if err != nil {
			runner.logger.Error("reconcile failed", zap.String("company_id", companyID.String()), zap.Error(err))
			failures = append(failures, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}
		for _, discrepancy := range discrepancies {
			runner.logger.Warn("ledger and snapshot disagree",
				zap.String("company_id", companyID.String()),
				zap.String("bucket", discrepancy.Bucket.String()),
				zap.String("ledger_total", discrepancy.LedgerTotal.String()),
				zap.String("on_hand", discrepancy.OnHand.String()),
			)
		}
		runner.logger.Info("reconcile completed", zap.String("company_id", companyID.String()), zap.Int("discrepancies", len(discrepancies)))
		if runner.observer != nil {
			runner.observer.ObserveReconcile(companyID, len(discrepancies), runner.now().Unix())
		}
		reports = append(reports, CompanyReport{CompanyID: companyID, Discrepancies: discrepancies})
	}
	return reports, errors.Join(failures...)
}

// Run reconciles immediately and then every interval until ctx is done.
// Overlapping runs are skipped and rescheduled.
func (runner *Runner) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return ErrInvalidInterval
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			_, _ = runner.RunOnce(ctx)
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	runner.logger.Info("reconcile scheduler starting", zap.Duration("every", every), zap.Int("companies", len(runner.companies)))
	scheduler.Start()
	<-ctx.Done()
	runner.logger.Info("reconcile scheduler stopping")
	return scheduler.Shutdown()
}
