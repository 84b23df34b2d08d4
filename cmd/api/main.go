package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/config"
	"github.com/flicky/go-checkout-api/internal/gateway"
	"github.com/flicky/go-checkout-api/internal/handler"
	"github.com/flicky/go-checkout-api/internal/logger"
	"github.com/flicky/go-checkout-api/internal/middleware"
	"github.com/flicky/go-checkout-api/internal/repository"
	"github.com/flicky/go-checkout-api/internal/service"
	"github.com/flicky/go-checkout-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Fatal("parse db config", zap.Error(err))
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("connect to Redis", zap.Error(err))
	}
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("connect to RabbitMQ", zap.Error(err))
	}
	defer amqpConn.Close()

	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Fatal("open RabbitMQ channel", zap.Error(err))
	}
	defer publishCh.Close()

	if err := worker.SetupRabbitMQ(publishCh); err != nil {
		log.Fatal("setup RabbitMQ", zap.Error(err))
	}

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Fatal("open RabbitMQ consumer channel", zap.Error(err))
	}
	defer consumeCh.Close()
	if err := consumeCh.Qos(1, 0, false); err != nil {
		log.Fatal("set consumer QoS", zap.Error(err))
	}
	log.Info("connected to RabbitMQ")

	// Payment gateway
	if cfg.Payment.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, payment calls will fail")
	}
	stripeGateway := gateway.NewStripe(cfg.Payment.StripeSecretKey, cfg.Payment.Timeout)

	// Repositories
	txManager := repository.NewTxManager(dbPool)
	userRepo := repository.NewUserRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	paymentRepo := repository.NewPaymentRepository(dbPool)

	// Services
	attempts := cfg.Checkout.CodeAttempts
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, log.Named("auth"))
	productSvc := service.NewProductService(productRepo, categoryRepo, redisClient, attempts, log.Named("catalog"))
	cartSvc := service.NewCartService(cartRepo, productRepo, attempts, log.Named("cart"))
	orderSvc := service.NewOrderService(txManager, orderRepo, cartRepo, productRepo,
		worker.NewPublisher(publishCh), productSvc, attempts, log.Named("checkout"))
	paymentSvc := service.NewPaymentService(txManager, orderRepo, paymentRepo, stripeGateway,
		cfg.Payment.Currency, log.Named("payment"))

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc, orderSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	paymentH := handler.NewPaymentHandler(paymentSvc)
	healthH := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	})

	// Worker
	orderWorker := worker.NewOrderWorker(consumeCh, orderRepo,
		worker.NewRedisProcessedStore(redisClient, worker.IdempotencyTTL),
		worker.NewLogNotifier(log.Named("notify")), log.Named("worker"))

	// Router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(log.Named("http")), middleware.Recovery(log))
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)
	v1 := router.Group("/api/v1")
	{
		authG := v1.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)

		v1.GET("/categories", productH.ListCategories)
		v1.POST("/categories", auth, middleware.AdminOnly(), productH.CreateCategory)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:code", productH.GetByCode)

		admin := products.Group("", auth, middleware.AdminOnly())
		admin.POST("", productH.Create)
		admin.PUT("/:code", productH.Update)

		cart := v1.Group("/cart", auth)
		cart.GET("", cartH.GetCart)
		cart.POST("/add-to-cart", cartH.AddToCart)
		cart.POST("/checkout", cartH.Checkout)
		cart.DELETE("/items/:id", cartH.RemoveItem)
		cart.DELETE("", cartH.Clear)

		orders := v1.Group("/orders", auth)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)

		payment := v1.Group("/payment", auth)
		payment.POST("", paymentH.CreatePayment)
		payment.POST("/:id/confirm", paymentH.ConfirmPayment)
	}

	if err := orderWorker.Start(ctx); err != nil {
		log.Fatal("start order worker", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}

	orderWorker.Stop()
	cancel()
	log.Info("server stopped")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
