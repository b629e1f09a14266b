package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/internal/app"
	"github.com/MarkoPoloResearchLab/stockledger/internal/config"
	"github.com/MarkoPoloResearchLab/stockledger/internal/reconcile"
	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsShutdownTimeout = 5 * time.Second

type companyReportView struct {
	CompanyID     string            `json:"company_id"`
	Discrepancies []discrepancyView `json:"discrepancies"`
}

func newReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare ledger sums with snapshots, once or on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, runtime *app.Runtime) error {
				runner, err := newRunner(runtime)
				if err != nil {
					return err
				}
				if runtime.Config.ReconcileEvery == 0 {
					reports, err := runner.RunOnce(ctx)
					if printErr := printJSON(cmd, newCompanyReportViews(reports)); printErr != nil {
						return printErr
					}
					return err
				}
				return runScheduled(ctx, runtime, runner)
			})
		},
	}
	cmd.Flags().String(config.FlagCompanies, "", "comma-separated company ids (required)")
	cmd.Flags().Duration(config.FlagEvery, 0, "run on this interval until interrupted (0 runs once)")
	cmd.Flags().String(config.FlagMetricsAddr, "", "serve prometheus metrics on this address while scheduled")
	return cmd
}

func newRunner(runtime *app.Runtime) (*reconcile.Runner, error) {
	companies := make([]inventory.CompanyID, 0, len(runtime.Config.Companies))
	for _, raw := range runtime.Config.Companies {
		companyID, err := inventory.NewCompanyID(raw)
		if err != nil {
			return nil, err
		}
		companies = append(companies, companyID)
	}
	return reconcile.NewRunner(runtime.Inventory, companies,
		reconcile.WithLogger(runtime.Logger),
		reconcile.WithObserver(runtime.Metrics),
	)
}

func runScheduled(ctx context.Context, runtime *app.Runtime, runner *reconcile.Runner) error {
	if runtime.Config.MetricsAddr == "" {
		return runner.Run(ctx, runtime.Config.ReconcileEvery)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", runtime.Metrics.Handler())
	server := &http.Server{Addr: runtime.Config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	errCh := make(chan error, 1)
	go func() {
		runtime.Logger.Info("metrics listening", zap.String("addr", runtime.Config.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stopRun()
		}
		close(errCh)
	}()

	runErr := runner.Run(runCtx, runtime.Config.ReconcileEvery)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		runtime.Logger.Warn("metrics shutdown error", zap.Error(err))
	}
	if serveErr := <-errCh; serveErr != nil {
		return fmt.Errorf("metrics server: %w", serveErr)
	}
	return runErr
}

func newCompanyReportViews(reports []reconcile.CompanyReport) []companyReportView {
	views := make([]companyReportView, 0, len(reports))
	for _, report := range reports {
		discrepancies := make([]discrepancyView, 0, len(report.Discrepancies))
		for _, discrepancy := range report.Discrepancies {
			discrepancies = append(discrepancies, discrepancyView{
				bucketView:  newBucketView(discrepancy.Bucket),
				LedgerTotal: discrepancy.LedgerTotal.String(),
				OnHand:      discrepancy.OnHand.String(),
			})
		}
		views = append(views, companyReportView{CompanyID: report.CompanyID.String(), Discrepancies: discrepancies})
	}
	return views
}
