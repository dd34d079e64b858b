package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/usecase"
)

func paidBooking() *model.Booking {
	b := pendingBooking(nil)
	b.Status = model.BookingStatusConfirmed
	b.PaymentStatus = model.PaymentStatusPaid
	providerName := "stripe"
	orderRef := "cs_test_123"
	captureRef := "ch_test_123"
	b.PaymentProvider = &providerName
	b.ProviderOrderRef = &orderRef
	b.ProviderCaptureRef = &captureRef
	return b
}

func newAdminService(store *fakeBookingStore, audits *MockAuditLogRepository, client *MockPaymentProvider, notifier usecase.Notifier) *usecase.AdminService {
	providers := map[provider.ProviderType]provider.PaymentProvider{}
	if client != nil {
		providers[provider.ProviderTypeStripe] = client
	}
	return usecase.NewAdminService(store, audits, providers, notifier, zap.NewNop())
}

func TestAdminServiceCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a pending booking", func(t *testing.T) {
		booking := pendingBooking(nil)
		store := newFakeBookingStore(booking)
		notifier := &recordingNotifier{}
		svc := newAdminService(store, new(MockAuditLogRepository), nil, notifier)

		cancelled, err := svc.CancelBooking(ctx, booking.ID, "traveler request")

		assert.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, 1, notifier.cancelled)

		current, _ := store.GetByID(ctx, booking.ID)
		assert.Equal(t, model.BookingStatusCancelled, current.Status)
		assert.NotNil(t, current.CancellationReason)
		assert.Equal(t, "traveler request", *current.CancellationReason)
	})

	t.Run("refunded booking cannot be cancelled", func(t *testing.T) {
		booking := paidBooking()
		booking.Status = model.BookingStatusRefunded
		booking.PaymentStatus = model.PaymentStatusRefunded
		store := newFakeBookingStore(booking)
		svc := newAdminService(store, new(MockAuditLogRepository), nil, usecase.NopNotifier{})

		_, err := svc.CancelBooking(ctx, booking.ID, "too late")

		assert.ErrorIs(t, err, domainErrors.ErrBookingNotCancellable)
	})

	t.Run("unknown booking", func(t *testing.T) {
		svc := newAdminService(newFakeBookingStore(), new(MockAuditLogRepository), nil, usecase.NopNotifier{})

		_, err := svc.CancelBooking(ctx, uuid.New(), "whatever")

		assert.ErrorIs(t, err, domainErrors.ErrBookingNotFound)
	})
}

func TestAdminServiceRefundBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds against the recorded capture", func(t *testing.T) {
		booking := paidBooking()
		store := newFakeBookingStore(booking)
		client := &MockPaymentProvider{ProviderName: provider.ProviderTypeStripe}
		client.On("CreateRefund", ctx, mock.MatchedBy(func(req *provider.RefundRequest) bool {
			return req.CaptureRef == "ch_test_123" && req.Amount == booking.TotalAmount &&
				req.Currency == "USD" && req.Reason == "service not delivered"
		})).Return(&provider.RefundResponse{RefundRef: "re_1", Status: "succeeded"}, nil)

		svc := newAdminService(store, new(MockAuditLogRepository), client, usecase.NopNotifier{})

		refunded, err := svc.RefundBooking(ctx, booking.ID, "service not delivered")

		assert.NoError(t, err)
		assert.Equal(t, model.BookingStatusRefunded, refunded.Status)
		assert.Equal(t, model.PaymentStatusRefunded, refunded.PaymentStatus)

		current, _ := store.GetByID(ctx, booking.ID)
		assert.Equal(t, model.BookingStatusRefunded, current.Status)
		assert.NotNil(t, current.RefundedAt)
		assert.NoError(t, current.CheckInvariants())
		client.AssertExpectations(t)
	})

	t.Run("falls back to the order reference", func(t *testing.T) {
		booking := paidBooking()
		booking.ProviderCaptureRef = nil
		store := newFakeBookingStore(booking)
		client := &MockPaymentProvider{ProviderName: provider.ProviderTypeStripe}
		client.On("CreateRefund", ctx, mock.MatchedBy(func(req *provider.RefundRequest) bool {
			return req.CaptureRef == "" && req.OrderRef == "cs_test_123"
		})).Return(&provider.RefundResponse{RefundRef: "re_1", Status: "succeeded"}, nil)

		svc := newAdminService(store, new(MockAuditLogRepository), client, usecase.NopNotifier{})

		_, err := svc.RefundBooking(ctx, booking.ID, "duplicate booking")

		assert.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("already refunded is idempotent", func(t *testing.T) {
		booking := paidBooking()
		booking.Status = model.BookingStatusRefunded
		booking.PaymentStatus = model.PaymentStatusRefunded
		store := newFakeBookingStore(booking)
		client := &MockPaymentProvider{ProviderName: provider.ProviderTypeStripe}

		svc := newAdminService(store, new(MockAuditLogRepository), client, usecase.NopNotifier{})

		refunded, err := svc.RefundBooking(ctx, booking.ID, "again")

		assert.NoError(t, err)
		assert.Equal(t, model.BookingStatusRefunded, refunded.Status)
		client.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("unpaid booking is not refundable", func(t *testing.T) {
		booking := pendingBooking(nil)
		store := newFakeBookingStore(booking)
		svc := newAdminService(store, new(MockAuditLogRepository), nil, usecase.NopNotifier{})

		_, err := svc.RefundBooking(ctx, booking.ID, "nope")

		assert.ErrorIs(t, err, domainErrors.ErrBookingNotRefundable)
	})

	t.Run("no payment reference requires a manual refund", func(t *testing.T) {
		booking := paidBooking()
		booking.ProviderCaptureRef = nil
		booking.ProviderOrderRef = nil
		store := newFakeBookingStore(booking)
		client := &MockPaymentProvider{ProviderName: provider.ProviderTypeStripe}

		svc := newAdminService(store, new(MockAuditLogRepository), client, usecase.NopNotifier{})

		_, err := svc.RefundBooking(ctx, booking.ID, "manual")

		assert.ErrorIs(t, err, domainErrors.ErrManualRefundRequired)
		client.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("provider failure leaves local state untouched", func(t *testing.T) {
		booking := paidBooking()
		store := newFakeBookingStore(booking)
		client := &MockPaymentProvider{ProviderName: provider.ProviderTypeStripe}
		client.On("CreateRefund", ctx, mock.Anything).
			Return(nil, &provider.ProviderError{Code: "charge_already_refunded", Message: "charge has already been refunded"})

		svc := newAdminService(store, new(MockAuditLogRepository), client, usecase.NopNotifier{})

		_, err := svc.RefundBooking(ctx, booking.ID, "retry me")

		assert.Error(t, err)
		var providerErr *provider.ProviderError
		assert.ErrorAs(t, err, &providerErr)

		current, _ := store.GetByID(ctx, booking.ID)
		assert.Equal(t, model.BookingStatusConfirmed, current.Status)
		assert.Nil(t, current.RefundedAt)
	})
}

func TestAdminServiceOverrideStatus(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("overrides status and writes the audit trail", func(t *testing.T) {
		booking := paidBooking()
		store := newFakeBookingStore(booking)
		audits := new(MockAuditLogRepository)
		audits.On("Create", ctx, mock.MatchedBy(func(entry *model.AuditLog) bool {
			return entry.Action == "booking_status_override" &&
				entry.ActorID != nil && *entry.ActorID == actorID &&
				entry.BookingID != nil && *entry.BookingID == booking.ID &&
				entry.OldValues["status"] == string(model.BookingStatusConfirmed) &&
				entry.NewValues["status"] == string(model.BookingStatusRefunded)
		})).Return(nil)

		svc := newAdminService(store, audits, nil, usecase.NopNotifier{})

		updated, err := svc.OverrideStatus(ctx, actorID, booking.ID,
			model.BookingStatusRefunded, model.PaymentStatusRefunded, "provider confirmed refund out of band")

		assert.NoError(t, err)
		assert.Equal(t, model.BookingStatusRefunded, updated.Status)
		assert.Equal(t, model.PaymentStatusRefunded, updated.PaymentStatus)
		assert.NotNil(t, updated.RefundedAt)
		assert.NoError(t, updated.CheckInvariants())
		audits.AssertExpectations(t)
	})

	t.Run("override succeeds even if the audit write fails", func(t *testing.T) {
		booking := paidBooking()
		store := newFakeBookingStore(booking)
		audits := new(MockAuditLogRepository)
		audits.On("Create", ctx, mock.Anything).Return(assert.AnError)

		svc := newAdminService(store, audits, nil, usecase.NopNotifier{})

		updated, err := svc.OverrideStatus(ctx, actorID, booking.ID,
			model.BookingStatusCompleted, model.PaymentStatusPaid, "stuck after support review")

		assert.NoError(t, err)
		assert.Equal(t, model.BookingStatusCompleted, updated.Status)
	})

	t.Run("unknown booking", func(t *testing.T) {
		svc := newAdminService(newFakeBookingStore(), new(MockAuditLogRepository), nil, usecase.NopNotifier{})

		_, err := svc.OverrideStatus(ctx, actorID, uuid.New(),
			model.BookingStatusCompleted, model.PaymentStatusPaid, "reason")

		assert.ErrorIs(t, err, domainErrors.ErrBookingNotFound)
	})
}
