package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/clock"
	collectiondomain "github.com/kolektahq/kolekta/internal/collection/domain"
	"github.com/kolektahq/kolekta/internal/config"
	customerdomain "github.com/kolektahq/kolekta/internal/customer/domain"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	invoiceservice "github.com/kolektahq/kolekta/internal/invoice/service"
	plandomain "github.com/kolektahq/kolekta/internal/plan/domain"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the lifecycle transition engine. It is the only writer of
// subscription and invoice status fields; every transition runs in one
// transaction scoped to the subscription and its current invoice.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.BillingConfig

	repo         domain.Repository
	invoiceRepo  invoicedomain.Repository
	invoiceSvc   *invoiceservice.Service
	customerRepo customerdomain.Repository
	planRepo     plandomain.Repository
	scheduleRepo collectiondomain.Repository
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config

	Repo         domain.Repository
	InvoiceRepo  invoicedomain.Repository
	InvoiceSvc   *invoiceservice.Service
	CustomerRepo customerdomain.Repository
	PlanRepo     plandomain.Repository
	ScheduleRepo collectiondomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config.Billing,

		repo:         p.Repo,
		invoiceRepo:  p.InvoiceRepo,
		invoiceSvc:   p.InvoiceSvc,
		customerRepo: p.CustomerRepo,
		planRepo:     p.PlanRepo,
		scheduleRepo: p.ScheduleRepo,
	}
}

type CreateSubscriptionRequest struct {
	CustomerID    string `json:"customer_id"`
	PlanID        string `json:"plan_id"`
	PaymentMethod string `json:"payment_method"`
}

type CreateSubscriptionResponse struct {
	Subscription domain.Subscription   `json:"subscription"`
	Invoice      invoicedomain.Invoice `json:"invoice"`
}

// Create enrolls a customer: subscription starts in pending_payment with
// the initial invoice generated in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error) {
	customerID, err := s.parseID(req.CustomerID, customerdomain.ErrInvalidCustomer)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	planID, err := s.parseID(req.PlanID, plandomain.ErrInvalidPlan)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	method, err := parsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	if customer == nil {
		return CreateSubscriptionResponse{}, customerdomain.ErrCustomerNotFound
	}
	if !customer.Active {
		return CreateSubscriptionResponse{}, domain.ErrCustomerInactive
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	if plan == nil {
		return CreateSubscriptionResponse{}, plandomain.ErrPlanNotFound
	}
	if !plan.Active {
		return CreateSubscriptionResponse{}, plandomain.ErrPlanInactive
	}

	existing, err := s.repo.FindOpenByCustomer(ctx, s.db, customerID)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	if existing != nil {
		return CreateSubscriptionResponse{}, domain.ErrAlreadyActive
	}

	now := s.clock.Now(ctx)
	subscription := domain.Subscription{
		ID:            s.genID.Generate(),
		CustomerID:    customerID,
		PlanID:        planID,
		Status:        domain.StatusPendingPayment,
		PaymentMethod: method,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var created *invoicedomain.Invoice
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			return err
		}
		created, err = s.invoiceSvc.Generate(ctx, tx, subscription.ID, customerID, plan.Price, now)
		return err
	}); err != nil {
		return CreateSubscriptionResponse{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("plan", plan.Code),
	)
	return CreateSubscriptionResponse{Subscription: subscription, Invoice: *created}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Subscription, error) {
	subscriptionID, err := s.parseID(id, domain.ErrInvalidSubscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if subscription == nil {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	return *subscription, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func parsePaymentMethod(value string) (domain.PaymentMethod, error) {
	method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodGCash:
		return method, nil
	default:
		return "", domain.ErrInvalidPaymentMethod
	}
}
