package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/customer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

type CreateCustomerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Barangay string `json:"barangay"`
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidCustomer
	}

	now := s.clock.Now(ctx)
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Barangay:  strings.TrimSpace(req.Barangay),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	s.log.Info("customer enrolled", zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*domain.Customer, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}
