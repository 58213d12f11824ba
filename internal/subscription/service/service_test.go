package service

import (
	"context"
	"testing"
	"time"

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
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"github.com/kolektahq/kolekta/internal/subscription/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	svc      *Service
	db       *gorm.DB
	clk      *clock.FixedClock
	node     *snowflake.Node
	customer customerdomain.Customer
	plan     plandomain.Plan
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&customerdomain.Customer{},
		&domain.Subscription{},
		&invoicedomain.Invoice{},
		&collectiondomain.ScheduleEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	cfg := config.Default()
	log := zap.NewNop()

	invoiceRepo := invoicerepository.Provide()
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Config: cfg,
		Repo:   invoiceRepo,
	})

	svc := New(Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Config: cfg,

		Repo:         repository.Provide(),
		InvoiceRepo:  invoiceRepo,
		InvoiceSvc:   invoiceSvc,
		CustomerRepo: customerrepository.Provide(),
		PlanRepo:     planrepository.Provide(),
		ScheduleRepo: collectionrepository.Provide(),
	})

	h := &harness{svc: svc, db: db, clk: clk, node: node}
	h.customer = customerdomain.Customer{
		ID:        node.Generate(),
		Name:      "Maria Santos",
		Barangay:  "San Isidro",
		Active:    true,
		CreatedAt: clk.Now(context.Background()),
		UpdatedAt: clk.Now(context.Background()),
	}
	require.NoError(t, db.Create(&h.customer).Error)

	h.plan = plandomain.Plan{
		ID:        node.Generate(),
		Code:      "weekly-residential",
		Name:      "Weekly Residential",
		Price:     decimal.RequireFromString("199.00"),
		Active:    true,
		CreatedAt: clk.Now(context.Background()),
		UpdatedAt: clk.Now(context.Background()),
	}
	require.NoError(t, db.Create(&h.plan).Error)

	return h
}

func (h *harness) create(t *testing.T) CreateSubscriptionResponse {
	t.Helper()
	resp, err := h.svc.Create(context.Background(), CreateSubscriptionRequest{
		CustomerID:    h.customer.ID.String(),
		PlanID:        h.plan.ID.String(),
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) confirm(t *testing.T, invoiceID snowflake.ID, amount string) ConfirmPaymentResponse {
	t.Helper()
	resp, err := h.svc.ConfirmPayment(context.Background(), ConfirmPaymentRequest{
		InvoiceID: invoiceID.String(),
		Amount:    decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) reloadSubscription(t *testing.T, id snowflake.ID) domain.Subscription {
	t.Helper()
	var sub domain.Subscription
	require.NoError(t, h.db.Where("id = ?", id).First(&sub).Error)
	return sub
}

func (h *harness) openInvoice(t *testing.T, subscriptionID snowflake.ID) *invoicedomain.Invoice {
	t.Helper()
	invoice, err := h.svc.invoiceRepo.FindOpenBySubscription(context.Background(), h.db, subscriptionID)
	require.NoError(t, err)
	return invoice
}

func (h *harness) scheduleEntries(t *testing.T, subscriptionID snowflake.ID) []collectiondomain.ScheduleEntry {
	t.Helper()
	var entries []collectiondomain.ScheduleEntry
	require.NoError(t, h.db.Where("subscription_id = ?", subscriptionID).Order("collection_date").Find(&entries).Error)
	return entries
}

func TestCreateStartsPendingPaymentWithInitialInvoice(t *testing.T) {
	h := newHarness(t)
	now := h.clk.Now(context.Background())

	resp := h.create(t)
	require.Equal(t, domain.StatusPendingPayment, resp.Subscription.Status)
	require.Equal(t, domain.PaymentStatusPending, resp.Subscription.PaymentStatus)
	require.Nil(t, resp.Subscription.BillingStartDate)

	require.Equal(t, invoicedomain.InvoiceStatusUnpaid, resp.Invoice.Status)
	require.True(t, resp.Invoice.Amount.Equal(h.plan.Price))
	require.True(t, resp.Invoice.DueDate.Equal(now.AddDate(0, 0, 30)))

	// No collections are scheduled before the first payment.
	require.Empty(t, h.scheduleEntries(t, resp.Subscription.ID))
}

func TestCreateRejectsSecondLiveSubscription(t *testing.T) {
	h := newHarness(t)
	h.create(t)

	_, err := h.svc.Create(context.Background(), CreateSubscriptionRequest{
		CustomerID:    h.customer.ID.String(),
		PlanID:        h.plan.ID.String(),
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestCreateRejectsInactiveCustomer(t *testing.T) {
	h := newHarness(t)

	inactive := customerdomain.Customer{
		ID:     h.node.Generate(),
		Name:   "Moved Away",
		Active: false,
	}
	require.NoError(t, h.db.Create(&inactive).Error)

	_, err := h.svc.Create(context.Background(), CreateSubscriptionRequest{
		CustomerID:    inactive.ID.String(),
		PlanID:        h.plan.ID.String(),
		PaymentMethod: "gcash",
	})
	require.ErrorIs(t, err, domain.ErrCustomerInactive)
}

func TestConfirmPaymentActivatesAndSchedulesCollections(t *testing.T) {
	h := newHarness(t)
	now := h.clk.Now(context.Background())

	created := h.create(t)
	resp := h.confirm(t, created.Invoice.ID, "199.00")

	require.Equal(t, domain.StatusActive, resp.Subscription.Status)
	require.Equal(t, domain.PaymentStatusPaid, resp.Subscription.PaymentStatus)
	require.NotNil(t, resp.Subscription.BillingStartDate)
	require.NotNil(t, resp.Subscription.NextBillingDate)
	require.True(t, resp.Subscription.NextBillingDate.Equal(now.AddDate(0, 0, 30)))

	require.Equal(t, invoicedomain.InvoiceStatusPaid, resp.Invoice.Status)
	require.NotNil(t, resp.Invoice.PaidAt)

	entries := h.scheduleEntries(t, resp.Subscription.ID)
	require.Len(t, entries, 4)
	require.True(t, entries[0].CollectionDate.Equal(now.AddDate(0, 0, 7)))
	for _, entry := range entries {
		require.Equal(t, collectiondomain.EntryStatusScheduled, entry.Status)
	}
}

func TestConfirmPaymentRejectsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)

	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmPaymentRequest{
		InvoiceID: created.Invoice.ID.String(),
		Amount:    decimal.RequireFromString("150.00"),
	})
	require.ErrorIs(t, err, invoicedomain.ErrAmountMismatch)

	var mismatch *invoicedomain.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.True(t, mismatch.Expected.Equal(decimal.RequireFromString("199.00")))
	require.True(t, mismatch.Received.Equal(decimal.RequireFromString("150.00")))

	// Nothing moved.
	sub := h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, domain.StatusPendingPayment, sub.Status)
}

func TestConfirmPaymentRejectsAlreadyPaidInvoice(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmPaymentRequest{
		InvoiceID: created.Invoice.ID.String(),
		Amount:    decimal.RequireFromString("199.00"),
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvoiceAlreadyPaid)
}

func TestMarkInvoiceOverdueHonorsGraceBoundary(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	due := created.Invoice.DueDate

	// Exactly at the end of day three of grace: still not overdue.
	h.clk.Set(due.AddDate(0, 0, 3))
	result, err := h.svc.MarkInvoiceOverdue(context.Background(), created.Invoice.ID)
	require.NoError(t, err)
	require.False(t, result.MarkedOverdue)

	// Past the grace boundary the invoice flips and the fee lands once.
	h.clk.Set(due.AddDate(0, 0, 3).Add(time.Hour))
	result, err = h.svc.MarkInvoiceOverdue(context.Background(), created.Invoice.ID)
	require.NoError(t, err)
	require.True(t, result.MarkedOverdue)
	require.True(t, result.LateFeeApplied)

	invoice := h.openInvoice(t, created.Subscription.ID)
	require.NotNil(t, invoice)
	require.Equal(t, invoicedomain.InvoiceStatusOverdue, invoice.Status)
	require.True(t, invoice.TotalDue().Equal(decimal.RequireFromString("219.00")))

	// Re-running the enforcement event changes nothing.
	result, err = h.svc.MarkInvoiceOverdue(context.Background(), created.Invoice.ID)
	require.NoError(t, err)
	require.False(t, result.MarkedOverdue)
	require.False(t, result.LateFeeApplied)
}

func TestPaymentClearsPendingOverdueState(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	// Next cycle's invoice goes overdue, then the customer pays mid-cycle.
	h.clk.AdvanceDays(30)
	billed, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.True(t, billed)

	invoice := h.openInvoice(t, created.Subscription.ID)
	require.NotNil(t, invoice)

	h.clk.Set(invoice.DueDate.AddDate(0, 0, 4))
	_, err = h.svc.MarkInvoiceOverdue(context.Background(), invoice.ID)
	require.NoError(t, err)

	resp := h.confirm(t, invoice.ID, "219.00")
	require.Equal(t, domain.StatusActive, resp.Subscription.Status)
	require.Nil(t, resp.Subscription.GracePeriodEnd)
	require.Equal(t, domain.PaymentStatusPaid, resp.Subscription.PaymentStatus)
}

func TestSuspensionAfterProlongedOverdue(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	billed, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.True(t, billed)

	invoice := h.openInvoice(t, created.Subscription.ID)
	require.NotNil(t, invoice)
	due := invoice.DueDate

	h.clk.Set(due.AddDate(0, 0, 4))
	_, err = h.svc.MarkInvoiceOverdue(context.Background(), invoice.ID)
	require.NoError(t, err)

	// Day 15 after due: not yet past the threshold.
	h.clk.Set(due.AddDate(0, 0, 15))
	suspended, err := h.svc.SuspendOverdue(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.False(t, suspended)

	h.clk.Set(due.AddDate(0, 0, 16))
	suspended, err = h.svc.SuspendOverdue(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.True(t, suspended)

	sub := h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, domain.StatusSuspended, sub.Status)
	require.NotNil(t, sub.SuspendedAt)

	// Future pickups were called off.
	for _, entry := range h.scheduleEntries(t, sub.ID) {
		if entry.CollectionDate.After(h.clk.Now(context.Background())) {
			require.Equal(t, collectiondomain.EntryStatusCancelled, entry.Status)
		}
	}
}

func TestPendingPaymentReferenceBlocksSuspension(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	_, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	invoice := h.openInvoice(t, created.Subscription.ID)
	require.NotNil(t, invoice)

	h.clk.Set(invoice.DueDate.AddDate(0, 0, 4))
	_, err = h.svc.MarkInvoiceOverdue(context.Background(), invoice.ID)
	require.NoError(t, err)

	_, err = h.svc.SubmitPaymentReference(context.Background(), invoice.ID.String(), "GC-20260310-123")
	require.NoError(t, err)

	h.clk.Set(invoice.DueDate.AddDate(0, 0, 20))
	suspended, err := h.svc.SuspendOverdue(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.False(t, suspended)

	sub := h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, domain.StatusActive, sub.Status)
}

func TestCancellationAfterProlongedSuspension(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	_, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	invoice := h.openInvoice(t, created.Subscription.ID)
	h.clk.Set(invoice.DueDate.AddDate(0, 0, 4))
	_, err = h.svc.MarkInvoiceOverdue(context.Background(), invoice.ID)
	require.NoError(t, err)

	h.clk.Set(invoice.DueDate.AddDate(0, 0, 16))
	_, err = h.svc.SuspendOverdue(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	// 30 days suspended: still within the threshold.
	h.clk.AdvanceDays(30)
	cancelled, err := h.svc.CancelSuspended(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.False(t, cancelled)

	h.clk.AdvanceDays(1)
	cancelled, err = h.svc.CancelSuspended(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	sub := h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, domain.StatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)
}

func TestPaymentWhileSuspendedReactivatesKeepingCycleCount(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	_, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	invoice := h.openInvoice(t, created.Subscription.ID)
	h.clk.Set(invoice.DueDate.AddDate(0, 0, 4))
	_, err = h.svc.MarkInvoiceOverdue(context.Background(), invoice.ID)
	require.NoError(t, err)
	h.clk.Set(invoice.DueDate.AddDate(0, 0, 16))
	_, err = h.svc.SuspendOverdue(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	resp := h.confirm(t, invoice.ID, "219.00")
	require.Equal(t, domain.StatusActive, resp.Subscription.Status)
	require.Equal(t, 1, resp.Subscription.BillingCycleCount)
	require.Nil(t, resp.Subscription.SuspendedAt)
	require.NotNil(t, resp.Subscription.ReactivatedAt)
	require.True(t, resp.Subscription.NextBillingDate.Equal(h.clk.Now(context.Background()).AddDate(0, 0, 30)))
}

func TestStandardReactivationRequiresSettledBalance(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	_, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	_, err = h.svc.RequestCancellation(context.Background(), created.Subscription.ID.String())
	require.NoError(t, err)

	// Within the window, but the cycle invoice is still open.
	h.clk.AdvanceDays(10)
	_, err = h.svc.RequestReactivation(context.Background(), created.Subscription.ID.String())
	require.ErrorIs(t, err, domain.ErrOutstandingBalance)

	var balanceErr *domain.OutstandingBalanceError
	require.ErrorAs(t, err, &balanceErr)
	require.True(t, balanceErr.Balance.Equal(decimal.RequireFromString("199.00")))

	// Settle the debt; standard reactivation now goes through with the
	// billing history intact.
	invoice := h.openInvoice(t, created.Subscription.ID)
	h.confirm(t, invoice.ID, "199.00")

	sub, err := h.svc.RequestReactivation(context.Background(), created.Subscription.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, sub.Status)
	require.Equal(t, 1, sub.BillingCycleCount)
}

func TestEnhancedReactivationResetsCycleAndArchivesDebt(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	_, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)

	unpaid := h.openInvoice(t, created.Subscription.ID)
	require.NotNil(t, unpaid)

	_, err = h.svc.RequestCancellation(context.Background(), created.Subscription.ID.String())
	require.NoError(t, err)

	// 31 days after cancellation the window has lapsed.
	h.clk.AdvanceDays(31)
	sub, err := h.svc.RequestReactivation(context.Background(), created.Subscription.ID.String())
	require.NoError(t, err)

	require.Equal(t, domain.StatusActive, sub.Status)
	require.Equal(t, 0, sub.BillingCycleCount)
	require.Equal(t, domain.PaymentStatusPending, sub.PaymentStatus)
	require.NotNil(t, sub.ReactivatedAt)

	// The old debt was archived, replaced by a fresh invoice at the
	// current plan price.
	var archived invoicedomain.Invoice
	require.NoError(t, h.db.Where("id = ?", unpaid.ID).First(&archived).Error)
	require.Equal(t, invoicedomain.InvoiceStatusArchived, archived.Status)

	fresh := h.openInvoice(t, sub.ID)
	require.NotNil(t, fresh)
	require.Equal(t, invoicedomain.InvoiceStatusUnpaid, fresh.Status)
	require.True(t, fresh.Amount.Equal(h.plan.Price))
	require.True(t, fresh.LateFee.IsZero())
}

func TestReactivationRequiresCancelledStatus(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)

	_, err := h.svc.RequestReactivation(context.Background(), created.Subscription.ID.String())
	require.ErrorIs(t, err, domain.ErrNotCancelled)
}

func TestRequestCancellationStopsCollections(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	sub, err := h.svc.RequestCancellation(context.Background(), created.Subscription.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, sub.Status)

	for _, entry := range h.scheduleEntries(t, sub.ID) {
		require.Equal(t, collectiondomain.EntryStatusCancelled, entry.Status)
	}

	// Cancelling an already-cancelled subscription is rejected.
	_, err = h.svc.RequestCancellation(context.Background(), created.Subscription.ID.String())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBillSubscriptionSkipsWhileInvoiceOpen(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.confirm(t, created.Invoice.ID, "199.00")

	h.clk.AdvanceDays(30)
	billed, err := h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.True(t, billed)

	sub := h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, 1, sub.BillingCycleCount)

	// The new invoice is still open 30 days later; billing skips rather
	// than stacking a second invoice.
	h.clk.AdvanceDays(30)
	billed, err = h.svc.BillSubscription(context.Background(), created.Subscription.ID)
	require.NoError(t, err)
	require.False(t, billed)

	sub = h.reloadSubscription(t, created.Subscription.ID)
	require.Equal(t, 1, sub.BillingCycleCount)
}
