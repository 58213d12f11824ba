package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EnforcementReport summarizes one daily enforcement pass.
type EnforcementReport struct {
	OverdueCount    int `json:"overdue_count"`
	LateFeesApplied int `json:"late_fees_applied"`
	SuspendedCount  int `json:"suspended_count"`
	CancelledCount  int `json:"cancelled_count"`
	Errors          int `json:"errors"`
}

// RunDailyEnforcement walks the three non-payment thresholds in order:
// grace expiry, suspension, and cancellation. Each candidate is handled
// in its own transaction by the lifecycle engine, which re-checks state
// under a row lock, so a payment that lands mid-scan makes the row a
// no-op rather than a conflict. Per-row errors are logged and counted;
// the scan keeps going.
func (s *Scheduler) RunDailyEnforcement(ctx context.Context) (EnforcementReport, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.daily_enforcement")
	defer span.End()

	run := s.beginRun(ctx, "daily_enforcement")
	now := s.clock.Now(ctx)
	log := s.log.With(zap.String("run_id", run.ID))

	var report EnforcementReport

	// Unpaid invoices whose grace period has fully elapsed.
	graceCutoff := now.Add(-time.Duration(s.cfg.Billing.GraceDays) * 24 * time.Hour)
	unpaid, err := s.invoiceRepo.ListUnpaidDueBefore(ctx, s.db, graceCutoff)
	if err != nil {
		s.finishRun(ctx, run, report.stats(), err)
		return report, err
	}
	for _, invoice := range unpaid {
		result, err := s.subscriptionSvc.MarkInvoiceOverdue(ctx, invoice.ID)
		if err != nil {
			report.Errors++
			s.metrics.JobErrors.WithLabelValues("daily_enforcement").Inc()
			log.Error("mark overdue failed",
				zap.Int64("invoice_id", int64(invoice.ID)), zap.Error(err))
			continue
		}
		if result.MarkedOverdue {
			report.OverdueCount++
			s.metrics.InvoicesOverdue.Inc()
		}
		if result.LateFeeApplied {
			report.LateFeesApplied++
			s.metrics.LateFeesApplied.Inc()
		}
	}

	// Overdue invoices old enough to suspend the subscription.
	suspendCutoff := now.Add(-time.Duration(s.cfg.Billing.SuspendAfterDays) * 24 * time.Hour)
	overdue, err := s.invoiceRepo.ListOverdueDueBefore(ctx, s.db, suspendCutoff)
	if err != nil {
		s.finishRun(ctx, run, report.stats(), err)
		return report, err
	}
	for _, invoice := range overdue {
		suspended, err := s.subscriptionSvc.SuspendOverdue(ctx, invoice.SubscriptionID)
		if err != nil {
			report.Errors++
			s.metrics.JobErrors.WithLabelValues("daily_enforcement").Inc()
			log.Error("suspend failed",
				zap.Int64("subscription_id", int64(invoice.SubscriptionID)), zap.Error(err))
			continue
		}
		if suspended {
			report.SuspendedCount++
			s.metrics.Suspended.Inc()
		}
	}

	// Subscriptions suspended past the cancellation threshold.
	cancelCutoff := now.Add(-time.Duration(s.cfg.Billing.CancelAfterDays) * 24 * time.Hour)
	stale, err := s.subscriptionRepo.ListSuspendedBefore(ctx, s.db, cancelCutoff)
	if err != nil {
		s.finishRun(ctx, run, report.stats(), err)
		return report, err
	}
	for _, subscription := range stale {
		cancelled, err := s.subscriptionSvc.CancelSuspended(ctx, subscription.ID)
		if err != nil {
			report.Errors++
			s.metrics.JobErrors.WithLabelValues("daily_enforcement").Inc()
			log.Error("cancel failed",
				zap.Int64("subscription_id", int64(subscription.ID)), zap.Error(err))
			continue
		}
		if cancelled {
			report.CancelledCount++
			s.metrics.Cancelled.Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("overdue", report.OverdueCount),
		attribute.Int("suspended", report.SuspendedCount),
		attribute.Int("cancelled", report.CancelledCount),
	)
	log.Info("daily enforcement finished",
		zap.Int("overdue", report.OverdueCount),
		zap.Int("late_fees", report.LateFeesApplied),
		zap.Int("suspended", report.SuspendedCount),
		zap.Int("cancelled", report.CancelledCount),
		zap.Int("errors", report.Errors))

	s.finishRun(ctx, run, report.stats(), nil)
	return report, nil
}

func (r EnforcementReport) stats() map[string]any {
	return map[string]any{
		"overdue_count":     r.OverdueCount,
		"late_fees_applied": r.LateFeesApplied,
		"suspended_count":   r.SuspendedCount,
		"cancelled_count":   r.CancelledCount,
		"errors":            r.Errors,
	}
}
