package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	customerdomain "github.com/kolektahq/kolekta/internal/customer/domain"
	customerservice "github.com/kolektahq/kolekta/internal/customer/service"
	plandomain "github.com/kolektahq/kolekta/internal/plan/domain"
	planservice "github.com/kolektahq/kolekta/internal/plan/service"
)

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerservice.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customer, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, customer)
}

func (s *Server) GetCustomer(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, customerdomain.ErrInvalidCustomer)
		return
	}
	customer, err := s.customerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, customer)
}

func (s *Server) ListCustomers(c *gin.Context) {
	customers, err := s.customerSvc.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, customers)
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req planservice.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	plan, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, plan)
}

func (s *Server) GetPlan(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, plandomain.ErrInvalidPlan)
		return
	}
	plan, err := s.planSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, plan)
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, plans)
}

// RunEnforcement triggers the daily enforcement pass on demand. Useful
// for support interventions without waiting for the next tick.
func (s *Server) RunEnforcement(c *gin.Context) {
	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "scheduler not running in this process"}})
		return
	}
	report, err := s.scheduler.RunDailyEnforcement(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}

func (s *Server) RunBilling(c *gin.Context) {
	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "scheduler not running in this process"}})
		return
	}
	report, err := s.scheduler.RunMonthlyBilling(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}
