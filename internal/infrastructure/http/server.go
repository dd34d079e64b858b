package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	handlers "github.com/companionly/payments-service/internal/adapter/handler/http"
	"github.com/companionly/payments-service/internal/config"
	domainProvider "github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/infrastructure/cache"
	"github.com/companionly/payments-service/internal/infrastructure/database"
	"github.com/companionly/payments-service/internal/infrastructure/notify"
	stripeProvider "github.com/companionly/payments-service/internal/infrastructure/provider/stripe"
	"github.com/companionly/payments-service/internal/middleware/auth"
	"github.com/companionly/payments-service/internal/usecase"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type Server struct {
	config     *config.Config
	logger     *zap.Logger
	echo       *echo.Echo
	repos      *database.Repositories
	providers  map[domainProvider.ProviderType]domainProvider.PaymentProvider
	onboarder  *stripeProvider.StripeProvider
	redis      *redis.Client
	feePercent decimal.Decimal
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	repos *database.Repositories,
	providers map[domainProvider.ProviderType]domainProvider.PaymentProvider,
	onboarder *stripeProvider.StripeProvider,
	redisClient *redis.Client,
	feePercent decimal.Decimal,
) *Server {
	e := echo.New()

	// Initialize Stripe
	stripe.Key = cfg.Service.StripeSecretKey

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))
	e.Validator = &requestValidator{validate: validator.New()}

	return &Server{
		config:     cfg,
		logger:     logger,
		echo:       e,
		repos:      repos,
		providers:  providers,
		onboarder:  onboarder,
		redis:      redisClient,
		feePercent: feePercent,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "payments",
		})
	})

	// Core services
	notifier := notify.NewRedisNotifier(s.redis, s.logger)
	reconciler := usecase.NewReconciler(s.repos.Booking, s.repos.PayoutAccount, notifier, s.feePercent, s.logger)
	processor := usecase.NewWebhookProcessor(s.providers, cache.NewEventDedup(s.redis), s.repos.WebhookEvent, reconciler, s.logger)
	bookingService := usecase.NewBookingService(s.repos.Booking, notifier, s.logger)
	checkoutService := usecase.NewCheckoutService(s.repos.Booking, s.repos.PayoutAccount, s.providers, s.feePercent, s.logger)
	adminService := usecase.NewAdminService(s.repos.Booking, s.repos.AuditLog, s.providers, notifier, s.logger)
	payoutService := usecase.NewPayoutAccountService(
		s.repos.PayoutAccount,
		s.onboarder,
		s.providers[domainProvider.ProviderTypeStripe],
		s.logger,
	)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(processor, s.logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, checkoutService, s.logger)
	adminHandler := handlers.NewAdminHandler(adminService, bookingService, s.logger)
	payoutHandler := handlers.NewPayoutAccountHandler(
		payoutService,
		s.config.Service.OnboardingRefreshURL,
		s.config.Service.OnboardingReturnURL,
		s.logger,
	)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhooks",
		},
	}

	// Webhook routes (outside API versioning, signature-authenticated)
	s.echo.POST("/webhooks/stripe", webhookHandler.HandleStripe)
	s.echo.POST("/webhooks/paypal", webhookHandler.HandlePayPal)

	// API v1 routes (require JWT authentication)
	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	bookings := v1.Group("/bookings")
	bookings.POST("", bookingHandler.CreateBooking)
	bookings.GET("/:id", bookingHandler.GetBooking)
	bookings.POST("/:id/checkout", bookingHandler.Checkout)
	bookings.POST("/:id/complete", bookingHandler.CompleteBooking)

	// Admin routes additionally require the admin role
	admin := v1.Group("/admin", auth.RequireRole("admin"))
	admin.POST("/bookings/:id/cancel", adminHandler.CancelBooking)
	admin.POST("/bookings/:id/refund", adminHandler.RefundBooking)
	admin.POST("/bookings/:id/assign", adminHandler.AssignCompanion)
	admin.POST("/bookings/:id/override-status", adminHandler.OverrideStatus)
	admin.POST("/companions/:id/payout-account", payoutHandler.Enroll)
	admin.POST("/companions/:id/payout-account/sync", payoutHandler.Sync)
}
