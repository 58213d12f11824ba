package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	subscriptionservice "github.com/kolektahq/kolekta/internal/subscription/service"
	"github.com/shopspring/decimal"
)

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidInvoice)
		return
	}
	invoice, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, invoice)
}

type confirmPaymentRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// ConfirmPayment settles an invoice after the collector verifies the
// cash or GCash payment. The amount is a decimal string to avoid float
// rounding on the wire.
func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.ConfirmPayment(c.Request.Context(), subscriptionservice.ConfirmPaymentRequest{
		InvoiceID: c.Param("id"),
		Amount:    amount,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

type paymentReferenceRequest struct {
	Reference string `json:"reference"`
}

// SubmitPaymentReference records a customer-submitted GCash reference
// on the open invoice. The subscription is not activated until a staff
// member confirms the payment, but a pending reference holds off
// suspension.
func (s *Server) SubmitPaymentReference(c *gin.Context) {
	var req paymentReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.subscriptionSvc.SubmitPaymentReference(c.Request.Context(), c.Param("id"), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, invoice)
}
