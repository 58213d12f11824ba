package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BillingReport summarizes one billing pass.
type BillingReport struct {
	InvoicesGenerated int `json:"invoices_generated"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
}

// RunMonthlyBilling generates the next invoice for every active
// subscription whose billing date has arrived. Cadence lives on each
// subscription's next_billing_date, so the job itself can run daily
// without double-billing anyone.
func (s *Scheduler) RunMonthlyBilling(ctx context.Context) (BillingReport, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.monthly_billing")
	defer span.End()

	run := s.beginRun(ctx, "monthly_billing")
	now := s.clock.Now(ctx)
	log := s.log.With(zap.String("run_id", run.ID))

	var report BillingReport

	due, err := s.subscriptionRepo.ListBillingDue(ctx, s.db, now)
	if err != nil {
		s.finishRun(ctx, run, report.stats(), err)
		return report, err
	}
	for _, subscription := range due {
		billed, err := s.subscriptionSvc.BillSubscription(ctx, subscription.ID)
		if err != nil {
			report.Errors++
			s.metrics.JobErrors.WithLabelValues("monthly_billing").Inc()
			log.Error("billing failed",
				zap.Int64("subscription_id", int64(subscription.ID)), zap.Error(err))
			continue
		}
		if billed {
			report.InvoicesGenerated++
			s.metrics.InvoicesGenerated.Inc()
		} else {
			report.Skipped++
		}
	}

	span.SetAttributes(attribute.Int("invoices_generated", report.InvoicesGenerated))
	log.Info("monthly billing finished",
		zap.Int("generated", report.InvoicesGenerated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))

	s.finishRun(ctx, run, report.stats(), nil)
	return report, nil
}

func (r BillingReport) stats() map[string]any {
	return map[string]any{
		"invoices_generated": r.InvoicesGenerated,
		"skipped":            r.Skipped,
		"errors":             r.Errors,
	}
}
