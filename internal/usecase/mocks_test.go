package usecase_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// MockBookingRepository is a mock implementation of BookingRepository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByProviderOrderRef(ctx context.Context, orderRef string) (*model.Booking, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateIf(ctx context.Context, id uuid.UUID, pre repository.BookingPrecondition, changes map[string]interface{}) (bool, error) {
	args := m.Called(ctx, id, pre, changes)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) OverrideStatus(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

// MockPayoutAccountRepository is a mock implementation of PayoutAccountRepository
type MockPayoutAccountRepository struct {
	mock.Mock
}

func (m *MockPayoutAccountRepository) Create(ctx context.Context, account *model.CompanionPayoutAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockPayoutAccountRepository) GetActiveByCompanionID(ctx context.Context, companionID uuid.UUID) (*model.CompanionPayoutAccount, error) {
	args := m.Called(ctx, companionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanionPayoutAccount), args.Error(1)
}

func (m *MockPayoutAccountRepository) GetByProviderAccountRef(ctx context.Context, accountRef string) (*model.CompanionPayoutAccount, error) {
	args := m.Called(ctx, accountRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanionPayoutAccount), args.Error(1)
}

func (m *MockPayoutAccountRepository) ApplyAccountUpdate(ctx context.Context, accountRef string, changes map[string]interface{}) error {
	args := m.Called(ctx, accountRef, changes)
	return args.Error(0)
}

func (m *MockPayoutAccountRepository) SupersedeByCompanionID(ctx context.Context, companionID uuid.UUID) error {
	args := m.Called(ctx, companionID)
	return args.Error(0)
}

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) SaveEvent(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, providerName, eventID string) error {
	args := m.Called(ctx, providerName, eventID)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) MarkFailed(ctx context.Context, providerName, eventID string, cause error) error {
	args := m.Called(ctx, providerName, eventID, cause)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) GetRetryableEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookEvent), args.Error(1)
}

// MockAuditLogRepository is a mock implementation of AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
	ProviderName provider.ProviderType
}

func (m *MockPaymentProvider) Name() provider.ProviderType {
	return m.ProviderName
}

func (m *MockPaymentProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*provider.PaymentEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PaymentEvent), args.Error(1)
}

func (m *MockPaymentProvider) CreateCapture(ctx context.Context, req *provider.CreateCaptureRequest) (*provider.CreateCaptureResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CreateCaptureResponse), args.Error(1)
}

func (m *MockPaymentProvider) RetrieveOrder(ctx context.Context, orderRef string) (*provider.Order, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *MockPaymentProvider) CreateRefund(ctx context.Context, req *provider.RefundRequest) (*provider.RefundResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.RefundResponse), args.Error(1)
}

func (m *MockPaymentProvider) RetrieveAccount(ctx context.Context, accountRef string) (*provider.PayoutAccount, error) {
	args := m.Called(ctx, accountRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PayoutAccount), args.Error(1)
}

// MockDedupCache is a mock implementation of DedupCache
type MockDedupCache struct {
	mock.Mock
}

func (m *MockDedupCache) Register(ctx context.Context, providerName, eventID string) (bool, error) {
	args := m.Called(ctx, providerName, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupCache) Unregister(ctx context.Context, providerName, eventID string) error {
	args := m.Called(ctx, providerName, eventID)
	return args.Error(0)
}

// recordingNotifier counts lifecycle notifications
type recordingNotifier struct {
	mu        sync.Mutex
	confirmed int
	cancelled int
	assigned  int
}

func (n *recordingNotifier) BookingConfirmed(ctx context.Context, booking *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *recordingNotifier) BookingCancelled(ctx context.Context, booking *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled++
}

func (n *recordingNotifier) CompanionAssigned(ctx context.Context, booking *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned++
}
