package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/handlers"
	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/cache"
	"github.com/aaravmahajanofficial/storefront-core/internal/clients"
	"github.com/aaravmahajanofficial/storefront-core/internal/config"
	"github.com/aaravmahajanofficial/storefront-core/internal/health"
	"github.com/aaravmahajanofficial/storefront-core/internal/metrics"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/telemetry"
	"github.com/aaravmahajanofficial/storefront-core/pkg/sendgrid"
	"github.com/aaravmahajanofficial/storefront-core/pkg/stripe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, &cfg.Otel, cfg.Env, version)
	if err != nil {
		slog.Error("❌ Error setting up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repos, err := repository.New(ctx, &cfg.Database)
	if err != nil {
		slog.Error("❌ Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	redisClient, err := repository.NewRedisClient(ctx, &cfg.RedisConnect)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("⚠️ Error closing redis connection", slog.String("error", err.Error()))
		}
	}()

	redisCache := cache.NewRedisCache(redisClient, &cfg.Cache)

	// Storage
	guestCarts := repository.NewGuestCartRepo(redisCache, cfg.Checkout.GuestCartTTL)
	pending := repository.NewPendingCheckoutRepo(redisCache, cfg.Checkout.PendingTTL)
	rateLimiter := repository.NewRateLimitRepo(redisClient, &cfg.RateConfig, time.Now)

	// Collaborators over HTTP
	cartClient := clients.NewCartClient(cfg.Services.CartBaseURL, cfg.Services.RequestTimeout, cfg.Services.MaxRetries)
	orderClient := clients.NewOrderClient(cfg.Services.OrderBaseURL, cfg.Services.RequestTimeout, cfg.Services.MaxRetries)
	shippingClient := clients.NewShippingClient(cfg.Services.ShippingBaseURL, cfg.Services.RequestTimeout, cfg.Services.MaxRetries)
	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	emailClient := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName,
		sendgrid.WithSandbox(cfg.SendGrid.SandboxMode))

	// Services
	sessions := service.NewSessionRegistry(guestCarts, cartClient, service.NewLineNormalizer())
	catalogService := service.NewCatalogService(repos.Catalog, redisCache, cfg.Cache.DefaultTTL)
	notificationService := service.NewNotificationService(repos.Notification, emailClient, cfg.Checkout.StoreName)
	cartService := service.NewCartService(repos.Cart)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Capabilities: repos.Catalog,
		Stock:        repos.Catalog,
		Shipping:     shippingClient,
		Orders:       orderClient,
		Payments:     stripeClient,
		Pending:      pending,
		Notifier:     notificationService,
		Sessions:     sessions,
	}, cfg.Checkout.Currency)

	poller := service.NewStockPoller(repos.Catalog, sessions, cfg.Checkout.PollInterval, cfg.Checkout.PollMaxRetries).
		WithSweeper("cart_session", sessions, cfg.Checkout.SessionIdleTTL).
		WithSweeper("checkout", checkoutService, cfg.Checkout.CheckoutTTL)
	go poller.Run(ctx)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey))
	quoteHandler := handlers.NewQuoteHandler()
	cartHandler := handlers.NewCartHandler(sessions, catalogService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, sessions, rateLimiter)
	paymentHandler := handlers.NewPaymentHandler(stripeClient, checkoutService)
	internalCartHandler := handlers.NewInternalCartHandler(cartService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	healthHandler, err := health.NewHealthHandler(version, &health.Endpoints{
		DB:     repos.DB,
		Redis:  redisClient,
		Stripe: stripeClient,
		Upstreams: map[string]string{
			"order-service":    cfg.Services.OrderBaseURL + "/health",
			"shipping-service": cfg.Services.ShippingBaseURL + "/health",
		},
	})
	if err != nil {
		slog.Error("❌ Error creating health checks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", version))

	// Setup router
	routerMux := http.NewServeMux()

	routerMux.HandleFunc("GET /api/v1/quote", quoteHandler.Quote())

	routerMux.HandleFunc("GET /api/v1/cart", authMiddleware.Optional(cartHandler.GetCart()))
	routerMux.HandleFunc("DELETE /api/v1/cart", authMiddleware.Optional(cartHandler.ClearCart()))
	routerMux.HandleFunc("POST /api/v1/cart/items", authMiddleware.Optional(cartHandler.AddItem()))
	routerMux.HandleFunc("PATCH /api/v1/cart/items/{id}", authMiddleware.Optional(cartHandler.UpdateItem()))
	routerMux.HandleFunc("DELETE /api/v1/cart/items/{id}", authMiddleware.Optional(cartHandler.RemoveItem()))
	routerMux.HandleFunc("POST /api/v1/cart/selection", authMiddleware.Optional(cartHandler.Select()))
	routerMux.HandleFunc("POST /api/v1/cart/remove-selected", authMiddleware.Optional(cartHandler.RemoveSelected()))
	routerMux.HandleFunc("POST /api/v1/cart/login", authMiddleware.Authenticate(cartHandler.Login()))
	routerMux.HandleFunc("POST /api/v1/cart/logout", authMiddleware.Authenticate(cartHandler.Logout()))

	routerMux.HandleFunc("POST /api/v1/checkout", authMiddleware.Optional(checkoutHandler.Begin()))
	routerMux.HandleFunc("POST /api/v1/checkout/return", authMiddleware.Optional(checkoutHandler.Return()))
	routerMux.HandleFunc("GET /api/v1/checkout/{id}", authMiddleware.Optional(checkoutHandler.Get()))
	routerMux.HandleFunc("DELETE /api/v1/checkout/{id}", authMiddleware.Optional(checkoutHandler.Abandon()))
	routerMux.HandleFunc("POST /api/v1/checkout/{id}/address", authMiddleware.Optional(checkoutHandler.SetAddress()))
	routerMux.HandleFunc("POST /api/v1/checkout/{id}/payment", authMiddleware.Optional(checkoutHandler.ChoosePayment()))
	routerMux.HandleFunc("GET /api/v1/checkout/{id}/review", authMiddleware.Optional(checkoutHandler.Review()))
	routerMux.HandleFunc("POST /api/v1/checkout/{id}/submit", authMiddleware.Optional(checkoutHandler.Submit()))

	routerMux.HandleFunc("POST /api/v1/payments/webhook", paymentHandler.HandleStripeWebhook())
	routerMux.HandleFunc("GET /api/v1/orders/{id}/notifications", authMiddleware.Authenticate(notificationHandler.ListForOrder()))

	routerMux.HandleFunc("GET /internal/v1/carts", authMiddleware.Authenticate(internalCartHandler.GetCart()))
	routerMux.HandleFunc("DELETE /internal/v1/carts", authMiddleware.Authenticate(internalCartHandler.ClearCart()))
	routerMux.HandleFunc("POST /internal/v1/carts/items", authMiddleware.Authenticate(internalCartHandler.AddLine()))
	routerMux.HandleFunc("PATCH /internal/v1/carts/items/{id}", authMiddleware.Authenticate(internalCartHandler.UpdateLine()))
	routerMux.HandleFunc("DELETE /internal/v1/carts/items/{id}", authMiddleware.Authenticate(internalCartHandler.RemoveLine()))

	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "storefront")

	server := http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("❌ Failed to start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Failed to flush traces", slog.String("error", err.Error()))
	}
}
