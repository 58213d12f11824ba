package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/kolektahq/kolekta/internal/customer/domain"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	plandomain "github.com/kolektahq/kolekta/internal/plan/domain"
	subscriptiondomain "github.com/kolektahq/kolekta/internal/subscription/domain"
)

// AbortWithError translates domain errors into HTTP responses. The
// error's own message is the reason; unknown errors become an opaque
// 500 so internals never leak to the mobile client.
func AbortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, customerdomain.ErrCustomerNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound):
		return http.StatusNotFound

	case errors.Is(err, errBadRequest),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidPaymentMethod),
		errors.Is(err, invoicedomain.ErrInvalidInvoice),
		errors.Is(err, customerdomain.ErrInvalidCustomer),
		errors.Is(err, plandomain.ErrInvalidPlan):
		return http.StatusBadRequest

	case errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrAlreadyActive),
		errors.Is(err, subscriptiondomain.ErrNotCancelled),
		errors.Is(err, invoicedomain.ErrInvoiceAlreadyPaid),
		errors.Is(err, invoicedomain.ErrDuplicateInvoice):
		return http.StatusConflict

	case errors.Is(err, invoicedomain.ErrAmountMismatch),
		errors.Is(err, subscriptiondomain.ErrOutstandingBalance),
		errors.Is(err, subscriptiondomain.ErrCustomerInactive),
		errors.Is(err, plandomain.ErrPlanInactive):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("invalid request body")

func invalidRequestError() error {
	return errBadRequest
}
