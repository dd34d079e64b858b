package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/usecase"
)

// PayoutAccountHandler serves companion payout enrollment and sync.
type PayoutAccountHandler struct {
	payouts           *usecase.PayoutAccountService
	defaultRefreshURL string
	defaultReturnURL  string
	logger            *zap.Logger
}

func NewPayoutAccountHandler(payouts *usecase.PayoutAccountService, defaultRefreshURL, defaultReturnURL string, logger *zap.Logger) *PayoutAccountHandler {
	return &PayoutAccountHandler{
		payouts:           payouts,
		defaultRefreshURL: defaultRefreshURL,
		defaultReturnURL:  defaultReturnURL,
		logger:            logger,
	}
}

type enrollRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RefreshURL string `json:"refresh_url" validate:"omitempty,url"`
	ReturnURL  string `json:"return_url" validate:"omitempty,url"`
}

func (h *PayoutAccountHandler) Enroll(c echo.Context) error {
	companionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid companion ID"})
	}

	var req enrollRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email is required"})
	}

	refreshURL := req.RefreshURL
	if refreshURL == "" {
		refreshURL = h.defaultRefreshURL
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.defaultReturnURL
	}

	result, err := h.payouts.Enroll(c.Request().Context(), companionID, req.Email, refreshURL, returnURL)
	if err != nil {
		h.logger.Error("Payout enrollment failed",
			zap.String("companion_id", companionID.String()),
			zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *PayoutAccountHandler) Sync(c echo.Context) error {
	companionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid companion ID"})
	}

	account, err := h.payouts.Sync(c.Request().Context(), companionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, account)
}
