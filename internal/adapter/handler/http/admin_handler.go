package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/middleware/auth"
	"github.com/companionly/payments-service/internal/usecase"
)

// AdminHandler serves the JWT-gated admin routes: cancellation, refund,
// companion assignment and the manual status-correction path.
type AdminHandler struct {
	admin    *usecase.AdminService
	bookings *usecase.BookingService
	logger   *zap.Logger
}

func NewAdminHandler(admin *usecase.AdminService, bookings *usecase.BookingService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		bookings: bookings,
		logger:   logger,
	}
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *AdminHandler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	booking, err := h.admin.CancelBooking(c.Request().Context(), id, req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *AdminHandler) RefundBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	booking, err := h.admin.RefundBooking(c.Request().Context(), id, req.Reason)
	if err != nil {
		h.logger.Error("Refund failed",
			zap.String("booking_id", id.String()),
			zap.Error(err))
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

type assignCompanionRequest struct {
	CompanionID string `json:"companion_id" validate:"required,uuid"`
}

func (h *AdminHandler) AssignCompanion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	var req assignCompanionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "companion_id is required"})
	}
	companionID, err := uuid.Parse(req.CompanionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid companion_id"})
	}

	booking, err := h.bookings.AssignCompanion(c.Request().Context(), id, companionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

type overrideStatusRequest struct {
	Status        string `json:"status" validate:"required,oneof=pending assigned confirmed completed cancelled refunded"`
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
	Reason        string `json:"reason" validate:"required"`
}

// OverrideStatus is the manual correction path for bookings flagged by
// invalid-transition log entries. Every use is audit-logged with the acting
// admin.
func (h *AdminHandler) OverrideStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid booking ID"})
	}

	var req overrideStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status, payment_status and reason are required"})
	}

	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}
	actorID, err := uuid.Parse(user.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid admin identity"})
	}

	booking, err := h.admin.OverrideStatus(
		c.Request().Context(),
		actorID,
		id,
		model.BookingStatus(req.Status),
		model.PaymentStatus(req.PaymentStatus),
		req.Reason,
	)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}
