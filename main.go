package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tokoorders/internal/config"
	"tokoorders/internal/database"
	"tokoorders/internal/handlers"
	"tokoorders/internal/idempotency"
	"tokoorders/internal/middleware"
	"tokoorders/internal/models"
	"tokoorders/internal/notifier"
	"tokoorders/internal/repositories"
	"tokoorders/internal/services"
	"tokoorders/pkg/rabbitmq"
)

// App bundles the Fiber app with the services and connections it owns.
type App struct {
	Fiber        *fiber.App
	AuthService  *services.AuthService
	OrderService *services.OrderService

	cfg      config.Config
	db       *gorm.DB
	mqClient *rabbitmq.Client
	rdb      *redis.Client
}

// NewApp connects to every backing service named in cfg and builds the HTTP
// routes. RabbitMQ and Redis are optional: an empty URL/address disables them.
func NewApp(cfg config.Config) (*App, error) {
	ctx := context.Background()
	a := &App{cfg: cfg}

	// --- Database ---
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := database.Migrate(db, cfg.DatabaseDriver); err != nil {
		a.Close()
		return nil, err
	}
	store := repositories.NewGORMStore(db)

	// --- Email notifications ---
	var emailNotifier services.Notifier
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queues: []string{cfg.EmailQueue}})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mqClient = mqClient
		emailNotifier = notifier.NewQueueNotifier(mqClient, cfg.EmailQueue)
	} else {
		log.Println("RABBITMQ_URL is empty, emails are delivered in-process")
		emailNotifier = notifier.NewDirectNotifier(notifier.LogMailer{})
	}

	// --- Idempotency keys ---
	var idem idempotency.Store
	if cfg.RedisAddr != "" {
		rdb, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
		idem = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	}

	// --- Services ---
	a.AuthService = services.NewAuthService(store.Users(), cfg.JWTSecret, cfg.JWTTTL)
	a.OrderService = services.NewOrderService(store, emailNotifier, cfg.NotifyTimeout)
	productService := services.NewProductService(store.Products())

	if cfg.AdminEmail != "" {
		if err := a.AuthService.EnsureAdmin(ctx, "Administrator", cfg.AdminEmail, cfg.AdminPassword); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.SeedProducts {
		seedProducts(ctx, store.Products())
	}

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(a.AuthService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(a.OrderService, idem)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", a.handleHealth)

	apiV1 := app.Group("/api/v1")
	authRequired := middleware.AuthRequired(a.AuthService)
	adminOnly := middleware.AdminOnly()

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1, authRequired, adminOnly)
	orderHandler.RegisterRoutes(apiV1, authRequired, adminOnly)

	a.Fiber = app
	return a, nil
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"database": "connected",
		"rabbitmq": "disabled",
		"redis":    "disabled",
	}

	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		log.Printf("Health check: database unreachable: %v", err)
		status = fiber.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
	}
	if a.mqClient != nil {
		body["rabbitmq"] = "connected"
	}
	if a.rdb != nil {
		body["redis"] = "connected"
		if err := a.rdb.Ping(c.UserContext()).Err(); err != nil {
			body["redis"] = "unreachable"
		}
	}
	return c.Status(status).JSON(body)
}

// StartConsumers starts the email queue consumer when RabbitMQ is configured.
func (a *App) StartConsumers() error {
	if a.mqClient == nil {
		return nil
	}
	handler := notifier.Handler(notifier.LogMailer{}, a.cfg.NotifyTimeout)
	if err := a.mqClient.Consume(a.cfg.EmailQueue, handler); err != nil {
		return fmt.Errorf("failed to start email consumer: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, waits for pending emails and releases
// every connection.
func (a *App) Shutdown() error {
	var err error
	if a.Fiber != nil {
		err = a.Fiber.Shutdown()
	}
	if a.OrderService != nil {
		a.OrderService.Wait()
	}
	a.Close()
	return err
}

// Close releases backing connections without touching the HTTP server.
func (a *App) Close() {
	if a.mqClient != nil {
		if err := a.mqClient.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if err := app.StartConsumers(); err != nil {
		log.Printf("Email consumer not running: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// seedProducts populates an empty catalogue with a few demo products.
func seedProducts(ctx context.Context, repo repositories.ProductRepository) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		log.Printf("Skipping product seed: %v", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: 1200.00, Stock: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: 75.00, Stock: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25.00, Stock: 50},
	}
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}
