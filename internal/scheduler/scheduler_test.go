package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kolektahq/kolekta/internal/clock"
	collectiondomain "github.com/kolektahq/kolekta/internal/collection/domain"
	collectionrepository "github.com/kolektahq/kolekta/internal/collection/repository"
	"github.com/kolektahq/kolekta/internal/config"
	customerdomain "github.com/kolektahq/kolekta/internal/customer/domain"
	customerrepository "github.com/kolektahq/kolekta/internal/customer/repository"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	invoicerepository "github.com/kolektahq/kolekta/internal/invoice/repository"
	invoiceservice "github.com/kolektahq/kolekta/internal/invoice/service"
	plandomain "github.com/kolektahq/kolekta/internal/plan/domain"
	planrepository "github.com/kolektahq/kolekta/internal/plan/repository"
	subscriptiondomain "github.com/kolektahq/kolekta/internal/subscription/domain"
	subscriptionrepository "github.com/kolektahq/kolekta/internal/subscription/repository"
	subscriptionservice "github.com/kolektahq/kolekta/internal/subscription/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	scheduler *Scheduler
	svc       *subscriptionservice.Service
	db        *gorm.DB
	clk       *clock.FixedClock
	customer  customerdomain.Customer
	plan      plandomain.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&customerdomain.Customer{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&collectiondomain.ScheduleEntry{},
		&JobRun{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC))
	cfg := config.Default()
	log := zap.NewNop()

	invoiceRepo := invoicerepository.Provide()
	subscriptionRepo := subscriptionrepository.Provide()

	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg, Repo: invoiceRepo,
	})
	svc := subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,

		Repo:         subscriptionRepo,
		InvoiceRepo:  invoiceRepo,
		InvoiceSvc:   invoiceSvc,
		CustomerRepo: customerrepository.Provide(),
		PlanRepo:     planrepository.Provide(),
		ScheduleRepo: collectionrepository.Provide(),
	})

	sched := New(Params{
		DB:     db,
		Log:    log,
		Clock:  clk,
		Config: cfg,

		SubscriptionSvc:  svc,
		SubscriptionRepo: subscriptionRepo,
		InvoiceRepo:      invoiceRepo,

		Metrics: NewMetrics(prometheus.NewRegistry()),
	})

	f := &fixture{scheduler: sched, svc: svc, db: db, clk: clk}
	f.customer = customerdomain.Customer{ID: node.Generate(), Name: "Jose Ramos", Active: true}
	require.NoError(t, db.Create(&f.customer).Error)
	f.plan = plandomain.Plan{
		ID:     node.Generate(),
		Code:   "weekly-residential",
		Name:   "Weekly Residential",
		Price:  decimal.RequireFromString("199.00"),
		Active: true,
	}
	require.NoError(t, db.Create(&f.plan).Error)
	return f
}

// activeSubscription enrolls and pays so the subscription is mid-cycle.
func (f *fixture) activeSubscription(t *testing.T) subscriptiondomain.Subscription {
	t.Helper()
	created, err := f.svc.Create(context.Background(), subscriptionservice.CreateSubscriptionRequest{
		CustomerID:    f.customer.ID.String(),
		PlanID:        f.plan.ID.String(),
		PaymentMethod: "gcash",
	})
	require.NoError(t, err)

	resp, err := f.svc.ConfirmPayment(context.Background(), subscriptionservice.ConfirmPaymentRequest{
		InvoiceID: created.Invoice.ID.String(),
		Amount:    decimal.RequireFromString("199.00"),
		Reference: "GC-0001",
	})
	require.NoError(t, err)
	return resp.Subscription
}

func TestDailyEnforcementWalksThresholds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.activeSubscription(t)

	// Billing day: the cycle invoice is generated.
	f.clk.Set(*sub.NextBillingDate)
	billing, err := f.scheduler.RunMonthlyBilling(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, billing.InvoicesGenerated)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.Where("subscription_id = ? AND status = ?", sub.ID, invoicedomain.InvoiceStatusUnpaid).First(&invoice).Error)

	// Day 3 after due: still in grace, nothing happens.
	f.clk.Set(invoice.DueDate.AddDate(0, 0, 3))
	report, err := f.scheduler.RunDailyEnforcement(ctx)
	require.NoError(t, err)
	require.Zero(t, report.OverdueCount)

	// Day 4: grace expired, invoice goes overdue with the late fee.
	f.clk.Set(invoice.DueDate.AddDate(0, 0, 4))
	report, err = f.scheduler.RunDailyEnforcement(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.OverdueCount)
	require.Equal(t, 1, report.LateFeesApplied)
	require.Zero(t, report.SuspendedCount)

	// Day 16: suspension threshold crossed.
	f.clk.Set(invoice.DueDate.AddDate(0, 0, 16))
	report, err = f.scheduler.RunDailyEnforcement(ctx)
	require.NoError(t, err)
	require.Zero(t, report.OverdueCount)
	require.Equal(t, 1, report.SuspendedCount)

	reloaded := subscriptiondomain.Subscription{}
	require.NoError(t, f.db.Where("id = ?", sub.ID).First(&reloaded).Error)
	require.Equal(t, subscriptiondomain.StatusSuspended, reloaded.Status)

	// 31 days suspended: cancellation.
	f.clk.Set(invoice.DueDate.AddDate(0, 0, 16+31))
	report, err = f.scheduler.RunDailyEnforcement(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.CancelledCount)

	require.NoError(t, f.db.Where("id = ?", sub.ID).First(&reloaded).Error)
	require.Equal(t, subscriptiondomain.StatusCancelled, reloaded.Status)

	// Every pass left a finished job-run record behind.
	var runs []JobRun
	require.NoError(t, f.db.Where("job_name = ?", "daily_enforcement").Find(&runs).Error)
	require.Len(t, runs, 4)
	for _, run := range runs {
		require.NotNil(t, run.FinishedAt)
		require.Nil(t, run.Error)
	}
}

func TestMonthlyBillingIsIdempotentPerCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.activeSubscription(t)
	f.clk.Set(*sub.NextBillingDate)

	report, err := f.scheduler.RunMonthlyBilling(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.InvoicesGenerated)

	// Rerun on the same day: next_billing_date already advanced a period,
	// so nothing is due.
	report, err = f.scheduler.RunMonthlyBilling(ctx)
	require.NoError(t, err)
	require.Zero(t, report.InvoicesGenerated)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestRedisRunLockAllowsSingleAcquire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	lock := newRunLock(client, config.Default().Scheduler)

	ok, err := lock.Acquire(context.Background(), "daily_enforcement:2026-02-02")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(context.Background(), "daily_enforcement:2026-02-02")
	require.NoError(t, err)
	require.False(t, ok)

	// A different day is a different lease.
	ok, err = lock.Acquire(context.Background(), "daily_enforcement:2026-02-03")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalRunLockGuardsReruns(t *testing.T) {
	lock := newRunLock(nil, config.Default().Scheduler)

	ok, err := lock.Acquire(context.Background(), "monthly_billing:2026-02-02")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(context.Background(), "monthly_billing:2026-02-02")
	require.NoError(t, err)
	require.False(t, ok)
}
