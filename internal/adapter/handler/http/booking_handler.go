package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/usecase"
)

// BookingHandler serves the traveler-facing booking routes.
type BookingHandler struct {
	bookings *usecase.BookingService
	checkout *usecase.CheckoutService
	logger   *zap.Logger
}

func NewBookingHandler(bookings *usecase.BookingService, checkout *usecase.CheckoutService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		checkout: checkout,
		logger:   logger,
	}
}

type createBookingRequest struct {
	TravelerID  string `json:"traveler_id" validate:"required,uuid"`
	TotalAmount int64  `json:"total_amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "traveler_id, a positive total_amount and a 3-letter currency are required",
		})
	}

	travelerID, err := uuid.Parse(req.TravelerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid traveler_id"})
	}

	booking, err := h.bookings.Create(c.Request().Context(), usecase.CreateBookingInput{
		TravelerID:  travelerID,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
	})
	if err != nil {
		h.logger.Error("Failed to create booking", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	booking, err := h.bookings.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

type checkoutRequest struct {
	Provider string `json:"provider" validate:"required,oneof=stripe paypal"`
}

func (h *BookingHandler) Checkout(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider must be stripe or paypal"})
	}

	result, err := h.checkout.Checkout(c.Request().Context(), id, provider.ProviderType(req.Provider))
	if err != nil {
		h.logger.Error("Checkout failed",
			zap.String("booking_id", id.String()),
			zap.String("provider", req.Provider),
			zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	booking, err := h.bookings.Complete(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}
