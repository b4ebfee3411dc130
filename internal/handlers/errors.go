package handlers

import (
	"errors"
	"net/http"

	"grocery-checkout/internal/checkout"
	"grocery-checkout/internal/inventory"
	"grocery-checkout/internal/orders"
	"grocery-checkout/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{checkout.ErrEmptyOrder, http.StatusBadRequest, "EMPTY_ORDER"},
	{checkout.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
	{pricing.ErrVariantNotFound, http.StatusBadRequest, "VARIANT_NOT_FOUND"},
	{inventory.ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK"},
	{checkout.ErrInvalidPaymentMethod, http.StatusBadRequest, "INVALID_PAYMENT_METHOD"},
	{checkout.ErrInvalidAddress, http.StatusBadRequest, "INVALID_ADDRESS"},
	{checkout.ErrNotManualPayment, http.StatusBadRequest, "NOT_MANUAL_PAYMENT"},
	{orders.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{orders.ErrInvalidPaymentStatus, http.StatusBadRequest, "INVALID_PAYMENT_STATUS"},
	{checkout.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{inventory.ErrPoolNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{checkout.ErrNotAuthorized, http.StatusForbidden, "NOT_AUTHORIZED"},
	{checkout.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
}

// respondError writes {"error", "code"}. Unknown errors are logged and
// reported as a generic 500.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": err.Error(), "code": m.code})
			return
		}
	}

	_ = c.Error(err)
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "INVALID_INPUT"})
}
