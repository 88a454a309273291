package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/config"
	"github.com/example/flourish/internal/events"
	"github.com/example/flourish/internal/handlers"
	"github.com/example/flourish/internal/middleware"
	"github.com/example/flourish/internal/services"
)

// Deps carries the optional integrations built in main. Nil members are
// skipped.
type Deps struct {
	Publisher events.Publisher
	Archive   interface {
		services.OrderArchiver
		handlers.OrderLookup
	}
	Telegram *services.TelegramService
	Email    *services.EmailService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	catalog := services.NewCatalogService(db)
	coupons := services.NewCouponService(db)
	carts := services.NewCartService(db, coupons)
	orders := services.NewOrderService(db, carts, coupons, cfg.Currency)
	wishlist := services.NewWishlistService(db, carts)
	payments := services.NewPaymentService(db, orders, cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	dashboard := services.NewDashboardService(db)

	if deps.Publisher != nil {
		orders.Subscribe(services.NewEventForwarder(deps.Publisher))
	}
	if deps.Archive != nil {
		orders.Subscribe(services.NewArchiveRecorder(deps.Archive))
	}
	if deps.Telegram != nil {
		orders.Subscribe(deps.Telegram)
	}
	if deps.Email != nil {
		orders.Subscribe(deps.Email)
	}

	var mailer handlers.ResetMailer
	if deps.Email != nil {
		mailer = deps.Email
	}

	authHandler := handlers.NewAuthHandler(db, cfg)
	resetHandler := handlers.NewPasswordResetHandler(db, mailer)
	profileHandler := handlers.NewProfileHandler(db)
	catalogHandler := handlers.NewCatalogHandler(catalog)
	productHandler := handlers.NewProductHandler(catalog)
	cartHandler := handlers.NewCartHandler(carts)
	wishlistHandler := handlers.NewWishlistHandler(wishlist)
	couponHandler := handlers.NewCouponHandler(coupons)
	orderHandler := handlers.NewOrderHandler(db, orders)
	paymentHandler := handlers.NewPaymentHandler(payments)
	adminHandler := handlers.NewAdminHandler(db, dashboard, orders)

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)
	adminOnly := middleware.AdminOnly()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/verify-reset-code", resetHandler.VerifyResetCode)
	auth.Post("/reset-password", resetHandler.ResetPassword)

	// Catalog routes
	categories := api.Group("/categories", optionalAuth)
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", requireAuth, adminOnly, catalogHandler.CreateCategory)
	categories.Put("/:id", requireAuth, adminOnly, catalogHandler.UpdateCategory)
	categories.Delete("/:id", requireAuth, adminOnly, catalogHandler.DeleteCategory)

	products := api.Group("/products", optionalAuth)
	productHandler.RegisterProductRoutes(products, requireAuth, adminOnly)

	couponHandler.RegisterCouponRoutes(api.Group("/coupons"), optionalAuth, requireAuth, adminOnly)

	// Gateway callbacks carry their own signature.
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Protected routes
	protected := api.Group("", requireAuth)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	cartHandler.RegisterCartRoutes(protected.Group("/cart"))
	wishlistHandler.RegisterWishlistRoutes(protected.Group("/wishlist"))

	orderRoutes := protected.Group("/orders")
	orderHandler.RegisterOrderRoutes(orderRoutes, adminOnly)
	orderRoutes.Post("/:id/payment-intent", paymentHandler.CreateIntent)

	admin := protected.Group("/admin", adminOnly)
	adminHandler.RegisterAdminRoutes(admin, orderHandler)
	if deps.Archive != nil {
		admin.Get("/archive/orders/:orderNumber", handlers.NewArchiveHandler(deps.Archive).GetOrder)
	}
}
