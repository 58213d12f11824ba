// Package scheduler is the periodic trigger source for the lifecycle
// engine. It holds no business logic beyond threshold scans; every state
// change happens inside the engine's own per-subscription transactions,
// so a rerun of any job in the same day is harmless.
package scheduler

import (
	"context"
	"time"

	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/config"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	subscriptiondomain "github.com/kolektahq/kolekta/internal/subscription/domain"
	subscriptionservice "github.com/kolektahq/kolekta/internal/subscription/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.Config

	subscriptionSvc  *subscriptionservice.Service
	subscriptionRepo subscriptiondomain.Repository
	invoiceRepo      invoicedomain.Repository

	lock    RunLock
	metrics *Metrics
	tracer  trace.Tracer
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config

	SubscriptionSvc  *subscriptionservice.Service
	SubscriptionRepo subscriptiondomain.Repository
	InvoiceRepo      invoicedomain.Repository

	Redis   *redis.Client `optional:"true"`
	Metrics *Metrics
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler"),
		clock: p.Clock,
		cfg:   p.Config,

		subscriptionSvc:  p.SubscriptionSvc,
		subscriptionRepo: p.SubscriptionRepo,
		invoiceRepo:      p.InvoiceRepo,

		lock:    newRunLock(p.Redis, p.Config.Scheduler),
		metrics: p.Metrics,
		tracer:  otel.Tracer("kolekta/scheduler"),
	}
}

// RunForever wakes on the configured interval and runs whichever jobs
// have not completed for the current day. The interval is deliberately
// shorter than a day so a restarted instance catches up quickly.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval, err := time.ParseDuration(s.cfg.Scheduler.TickInterval)
	if err != nil || interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", interval))
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	day := s.clock.Now(ctx).Format("2006-01-02")

	if s.acquire(ctx, "daily_enforcement", day) {
		if _, err := s.RunDailyEnforcement(ctx); err != nil {
			s.log.Error("daily enforcement failed", zap.Error(err))
		}
	}
	if s.acquire(ctx, "monthly_billing", day) {
		if _, err := s.RunMonthlyBilling(ctx); err != nil {
			s.log.Error("monthly billing failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) acquire(ctx context.Context, job, day string) bool {
	ok, err := s.lock.Acquire(ctx, job+":"+day)
	if err != nil {
		s.log.Warn("run lock unavailable, skipping", zap.String("job", job), zap.Error(err))
		return false
	}
	return ok
}
