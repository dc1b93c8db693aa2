package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/core/service"
)

type ReconcilerService interface {
	Reconcile(ctx context.Context, limit int) (service.ReconcileReport, error)
}

// Reconciler periodically settles payments whose gateway callback never arrived.
type Reconciler struct {
	checkout  ReconcilerService
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewReconciler(checkout ReconcilerService, interval time.Duration, batchSize int, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		checkout:  checkout,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler", "interval", r.interval, "batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) service.ReconcileReport {
	return r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) service.ReconcileReport {
	report, err := r.checkout.Reconcile(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("reconciliation cycle failed", "error", err)
		return report
	}

	if report.Verified+report.Canceled+report.Failed > 0 {
		r.logger.Info("reconciled payments",
			"verified", report.Verified,
			"canceled", report.Canceled,
			"failed", report.Failed,
		)
	}
	return report
}
