package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fbarrios/storefront-backend/internal/address"
	"github.com/fbarrios/storefront-backend/internal/cart"
	"github.com/fbarrios/storefront-backend/internal/checkout"
	"github.com/fbarrios/storefront-backend/internal/config"
	"github.com/fbarrios/storefront-backend/internal/customer"
	"github.com/fbarrios/storefront-backend/internal/database"
	"github.com/fbarrios/storefront-backend/internal/expiry"
	"github.com/fbarrios/storefront-backend/internal/inventory"
	"github.com/fbarrios/storefront-backend/internal/notify"
	"github.com/fbarrios/storefront-backend/internal/order"
	"github.com/fbarrios/storefront-backend/internal/outbox"
	"github.com/fbarrios/storefront-backend/internal/product"
	"github.com/fbarrios/storefront-backend/internal/settlement"
	"github.com/fbarrios/storefront-backend/internal/stock"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("could not open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		logger.Error("could not run migrations", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// repositories
	productRepo := product.NewPostgresRepository(db)
	stockRepo := stock.NewPostgresRepository(db)
	customerRepo := customer.NewPostgresRepository(db)
	addressRepo := address.NewPostgresRepository(db)
	cartRepo := cart.NewPostgresRepository(db)
	orderRepo := order.NewPostgresRepository(db)
	expiryRepo := expiry.NewPostgresRepository(db)
	outboxRepo := outbox.NewPostgresRepository(db)
	confirmationRepo := settlement.NewPostgresConfirmationRepository(db)

	customerResolver := customer.NewResolver(db, customerRepo)

	// background workers
	scheduler := expiry.NewScheduler(db, orderRepo, stockRepo, expiryRepo, outboxRepo, logger)

	var writer outbox.KafkaWriter
	if kw := outbox.NewKafkaWriter(cfg.KafkaBrokers); kw != nil {
		writer = kw
		defer kw.Close()
	}
	poller := outbox.NewPoller(
		cfg.OutboxPollInterval,
		outboxRepo,
		inventory.NewClient(cfg.InventoryAPIURL),
		notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SenderEmail),
		writer,
		logger,
	)

	// services and handlers
	guestStore := cart.NewRedisGuestStore(redisClient, cfg.GuestCartTTL)
	cartService := cart.NewService(cartRepo, guestStore, productRepo, stockRepo)
	cartHandler := cart.NewHandler(cartService, customerResolver)

	checkoutService := checkout.NewService(db, orderRepo, stockRepo, customerRepo, addressRepo,
		expiryRepo, outboxRepo, scheduler, cfg.ReservationTTL, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, customerResolver)

	gateway := settlement.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	settlementService := settlement.NewService(db, gateway, orderRepo, customerRepo, productRepo,
		confirmationRepo, expiryRepo, outboxRepo, cfg.OperatorEmail, logger)
	settlementHandler := settlement.NewHandler(settlementService, cfg.PaymentReturnURL)

	orderHandler := order.NewHandler(orderRepo, customerResolver)

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Cart-Session",
	}))

	// the gateway redirects carry no Authorization header, keep them
	// outside the jwt middleware entirely
	settlementHandler.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		// guests check out without a token; when one is present it is
		// verified so the order attaches to the customer
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/v1/order/generate-order" && c.Get("Authorization") == ""
		},
	}))

	checkoutHandler.RegisterPublicRoutes(app)
	cartHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx, cfg.ExpirySweepInterval)
	go poller.Run(ctx)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
		_ = app.Shutdown()
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		logger.Error("server stopped", "error", err)
	}
	cancel()
}
