package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/kolektahq/kolekta/internal/subscription/domain"
	subscriptionservice "github.com/kolektahq/kolekta/internal/subscription/service"
)

type createSubscriptionRequest struct {
	CustomerID    string `json:"customer_id"`
	PlanID        string `json:"plan_id"`
	PaymentMethod string `json:"payment_method"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptionservice.CreateSubscriptionRequest{
		CustomerID:    strings.TrimSpace(req.CustomerID),
		PlanID:        strings.TrimSpace(req.PlanID),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) GetSubscription(c *gin.Context) {
	subscription, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, subscription)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	subscription, err := s.subscriptionSvc.RequestCancellation(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, subscription)
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	subscription, err := s.subscriptionSvc.RequestReactivation(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, subscription)
}

func (s *Server) ListSubscriptionInvoices(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, subscriptiondomain.ErrInvalidSubscription)
		return
	}
	invoices, err := s.invoiceSvc.ListBySubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, invoices)
}

func (s *Server) ListSubscriptionSchedule(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, subscriptiondomain.ErrInvalidSubscription)
		return
	}
	entries, err := s.scheduleRepo.ListUpcoming(c.Request.Context(), s.db, id, s.clock.Now(c.Request.Context()))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, entries)
}
