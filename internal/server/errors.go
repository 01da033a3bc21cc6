package server

import (
	"errors"
	"net/http"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	creditpackdomain "github.com/KristianHans04/ScraperX-sub001/internal/creditpack/domain"
	invoicedomain "github.com/KristianHans04/ScraperX-sub001/internal/invoice/domain"
	ledgerdomain "github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	subscriptiondomain "github.com/KristianHans04/ScraperX-sub001/internal/subscription/domain"
	webhookdomain "github.com/KristianHans04/ScraperX-sub001/internal/webhook/domain"
	"github.com/gin-gonic/gin"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: field + ": " + message}
}

// AbortWithError maps domain sentinels onto HTTP responses.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrNegativeBalance),
		errors.Is(err, webhookdomain.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, ledgerdomain.ErrInsufficientCredits),
		errors.Is(err, ledgerdomain.ErrInsufficientCreditsForReservation):
		status = http.StatusPaymentRequired
	case errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, creditpackdomain.ErrPurchaseNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, webhookdomain.ErrEventInProgress):
		status = http.StatusConflict
	case errors.Is(err, invoicedomain.ErrInvoiceNotEditable):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": "internal_error", "message": "internal error"}})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": err.Error(), "message": err.Error()}})
}
