// Package server exposes the lifecycle engine over HTTP for the mobile
// backend and the barangay admin console.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/config"
	collectiondomain "github.com/kolektahq/kolekta/internal/collection/domain"
	customerservice "github.com/kolektahq/kolekta/internal/customer/service"
	invoiceservice "github.com/kolektahq/kolekta/internal/invoice/service"
	planservice "github.com/kolektahq/kolekta/internal/plan/service"
	"github.com/kolektahq/kolekta/internal/scheduler"
	subscriptionservice "github.com/kolektahq/kolekta/internal/subscription/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	log   *zap.Logger
	cfg   config.Config
	db    *gorm.DB
	clock clock.Clock

	planSvc         *planservice.Service
	customerSvc     *customerservice.Service
	invoiceSvc      *invoiceservice.Service
	subscriptionSvc *subscriptionservice.Service
	scheduleRepo    collectiondomain.Repository
	scheduler       *scheduler.Scheduler

	registry *prometheus.Registry
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	DB     *gorm.DB
	Clock  clock.Clock

	PlanSvc         *planservice.Service
	CustomerSvc     *customerservice.Service
	InvoiceSvc      *invoiceservice.Service
	SubscriptionSvc *subscriptionservice.Service
	ScheduleRepo    collectiondomain.Repository
	Scheduler       *scheduler.Scheduler `optional:"true"`

	Registry *prometheus.Registry
}

func NewServer(p Params) *Server {
	return &Server{
		log:   p.Log.Named("server"),
		cfg:   p.Config,
		db:    p.DB,
		clock: p.Clock,

		planSvc:         p.PlanSvc,
		customerSvc:     p.CustomerSvc,
		invoiceSvc:      p.InvoiceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		scheduleRepo:    p.ScheduleRepo,
		scheduler:       p.Scheduler,

		registry: p.Registry,
	}
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log.Named("http")))
	return engine
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	{
		v1.POST("/customers", s.CreateCustomer)
		v1.GET("/customers", s.ListCustomers)
		v1.GET("/customers/:id", s.GetCustomer)

		v1.POST("/plans", s.CreatePlan)
		v1.GET("/plans", s.ListPlans)
		v1.GET("/plans/:id", s.GetPlan)

		v1.POST("/subscriptions", s.CreateSubscription)
		v1.GET("/subscriptions/:id", s.GetSubscription)
		v1.POST("/subscriptions/:id/cancel", s.CancelSubscription)
		v1.POST("/subscriptions/:id/reactivate", s.ReactivateSubscription)
		v1.GET("/subscriptions/:id/invoices", s.ListSubscriptionInvoices)
		v1.GET("/subscriptions/:id/schedule", s.ListSubscriptionSchedule)

		v1.GET("/invoices/:id", s.GetInvoice)
		v1.POST("/invoices/:id/confirm-payment", s.ConfirmPayment)
		v1.POST("/invoices/:id/payment-reference", s.SubmitPaymentReference)

		admin := v1.Group("/admin")
		{
			admin.POST("/enforcement/run", s.RunEnforcement)
			admin.POST("/billing/run", s.RunBilling)
		}
	}
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// RunHTTP wires the engine into the fx lifecycle with graceful shutdown.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, server *Server, cfg config.Config, log *zap.Logger) {
	server.RegisterRoutes(engine)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
