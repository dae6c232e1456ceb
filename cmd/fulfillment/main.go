package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freshgrove/fulfillment/internal/api/handlers"
	"github.com/freshgrove/fulfillment/internal/api/middleware"
	"github.com/freshgrove/fulfillment/internal/config"
	"github.com/freshgrove/fulfillment/internal/health"
	"github.com/freshgrove/fulfillment/internal/inventory"
	"github.com/freshgrove/fulfillment/internal/metrics"
	"github.com/freshgrove/fulfillment/internal/pricing"
	repository "github.com/freshgrove/fulfillment/internal/repositories"
	service "github.com/freshgrove/fulfillment/internal/services"
	"github.com/freshgrove/fulfillment/internal/telemetry"
	"github.com/freshgrove/fulfillment/pkg/rabbitmq"
	"github.com/freshgrove/fulfillment/pkg/sendgrid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Tracing setup
	shutdownTracing, err := telemetry.Setup(context.Background(), &cfg.Telemetry)
	if err != nil {
		slog.Error("Error setting up tracing", "error", err.Error())
		os.Exit(1)
	}

	// Schema migrations
	if err := repository.Migrate(cfg); err != nil {
		slog.Error("Error applying migrations", "error", err.Error())
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("Error accessing the database", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}()

	// Redis setup (cart store)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConnect.Addr,
		Password: cfg.RedisConnect.Password,
		DB:       cfg.RedisConnect.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		slog.Error("Error accessing the redis instance", "error", err.Error())
		os.Exit(1)
	}

	// Broker setup; the service degrades to email-only notifications when
	// the broker is unreachable.
	var eventPublisher rabbitmq.EventPublisher

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		slog.Warn("RabbitMQ unavailable, order events disabled", slog.String("error", err.Error()))
	} else {
		eventPublisher = publisher
		defer publisher.Close()
	}

	jwtKey := []byte(cfg.Security.JWTKey)
	emailService := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	productRepo := repository.NewProductRepo(repos.DB)
	orderRepo := repository.NewOrderRepository(repos.DB)
	cartRepo := repository.NewCartRepo(redisClient, cfg.RedisConnect.CartTTL)

	portionPolicy := pricing.NewStepPortionPolicy(cfg.Checkout.PortionStepGrams, cfg.Checkout.PortionFloorGrams)
	ledger := inventory.NewLedger()

	notificationService := service.NewNotificationService(emailService, eventPublisher)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, portionPolicy)
	orderService := service.NewOrderService(repos.DB, orderRepo, cartRepo, ledger, notificationService, cfg.Checkout.CancellationWindow)

	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authMiddleware := middleware.NewAuthMiddleware(jwtKey)

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("Error setting up health checks", "error", err.Error())
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/products", productHandler.ListProducts())
	routerMux.HandleFunc("GET /api/v1/products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("GET /api/v1/cart", authMiddleware.Authenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/cart/items", authMiddleware.Authenticate(cartHandler.AddItem()))
	routerMux.HandleFunc("PUT /api/v1/cart/items", authMiddleware.Authenticate(cartHandler.UpdateQuantity()))
	routerMux.HandleFunc("PUT /api/v1/cart", authMiddleware.Authenticate(cartHandler.ReplaceCart()))
	routerMux.HandleFunc("DELETE /api/v1/cart/items/{id}", authMiddleware.Authenticate(cartHandler.RemoveItem()))
	routerMux.HandleFunc("DELETE /api/v1/cart", authMiddleware.Authenticate(cartHandler.ClearCart()))
	routerMux.HandleFunc("POST /api/v1/orders", authMiddleware.Authenticate(orderHandler.Checkout()))
	routerMux.HandleFunc("GET /api/v1/orders", authMiddleware.Authenticate(orderHandler.ListOrders()))
	routerMux.HandleFunc("GET /api/v1/orders/{id}", authMiddleware.Authenticate(orderHandler.GetOrder()))
	routerMux.HandleFunc("POST /api/v1/orders/{id}/cancel", authMiddleware.Authenticate(orderHandler.CancelOrder()))
	routerMux.HandleFunc("PATCH /api/v1/orders/{id}/status", authMiddleware.Authenticate(orderHandler.UpdateOrderStatus()))
	routerMux.HandleFunc("PATCH /api/v1/orders/{id}/payment-status", authMiddleware.Authenticate(orderHandler.UpdatePaymentStatus()))
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "fulfillment")

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown encountered an issue", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Tracing shutdown encountered an issue", slog.String("error", err.Error()))
	}

	slog.Info("Server shut down gracefully. All connections closed.")
}
