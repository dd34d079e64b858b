package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/provider"
)

// errorResponse maps domain errors to the HTTP contract. Conflicts (state
// preconditions, manual-refund) are 409, provider API failures are 502 so
// callers know the upstream rejected the call and nothing changed locally.
func errorResponse(c echo.Context, err error) error {
	var providerErr *provider.ProviderError

	switch {
	case errors.Is(err, domainErrors.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Booking not found",
			"code":  "BOOKING_NOT_FOUND",
		})
	case errors.Is(err, domainErrors.ErrPayoutAccountNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Payout account not found",
			"code":  "PAYOUT_ACCOUNT_NOT_FOUND",
		})
	case errors.Is(err, domainErrors.ErrManualRefundRequired):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "Booking has no provider payment reference; refund must be handled manually",
			"code":  "MANUAL_REFUND_REQUIRED",
		})
	case errors.Is(err, domainErrors.ErrBookingNotCancellable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "Booking is not in a cancellable state",
			"code":  "BOOKING_NOT_CANCELLABLE",
		})
	case errors.Is(err, domainErrors.ErrBookingNotRefundable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "Booking is not in a refundable state",
			"code":  "BOOKING_NOT_REFUNDABLE",
		})
	case errors.Is(err, domainErrors.ErrInvalidBookingState):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "Booking is not in a valid state for this operation",
			"code":  "INVALID_BOOKING_STATE",
		})
	case errors.As(err, &providerErr):
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": providerErr.Message,
			"code":  providerErr.Code,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Internal server error",
		})
	}
}
