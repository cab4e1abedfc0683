package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/http/handlers"
	"natours-api/internal/adapters/http/middleware"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/jwt"
)

const (
	bodyLimit    = 64 * 1024
	tourCacheTTL = time.Minute
)

// Deps are the collaborators the application is assembled from
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Log    *zap.Logger

	// Notifier sends account email. Nil uses SMTP from the config.
	Notifier services.Notifier
	// Payments creates checkouts. Nil disables booking checkout.
	Payments services.PaymentGateway
	// Storage backs the rate limiters. Nil keeps counters in memory.
	Storage fiber.Storage
}

// App is the HTTP application together with the services that outlive a
// single request
type App struct {
	Fiber   *fiber.App
	Ratings *services.RatingsService
	Cron    *services.CronService
}

// NewApp wires repositories, services, handlers and routes
func NewApp(deps Deps) *App {
	cfg, log := deps.Config, deps.Log

	// Initialize repositories
	userRepo := repositories.NewUserRepository(deps.DB)
	tourRepo := repositories.NewTourRepository(deps.DB)
	reviewRepo := repositories.NewReviewRepository(deps.DB)
	bookingRepo := repositories.NewBookingRepository(deps.DB)

	notifier := deps.Notifier
	if notifier == nil {
		notifier = services.NewEmailService(cfg.Email, log)
	}

	// Initialize services
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	authService := services.NewAuthService(userRepo, tokens, notifier, cfg, log)
	userService := services.NewUserService(userRepo, log)
	tourService := services.NewTourService(tourRepo, userRepo)
	ratingsService := services.NewRatingsService(reviewRepo, tourRepo, log)
	bookingService := services.NewBookingService(bookingRepo, tourRepo, userRepo, deps.Payments, log)
	cronService := services.NewCronService(ratingsService, userRepo, cfg.Cron, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB, cfg)
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService, userRepo)
	tourHandler := handlers.NewTourHandler(tourService, tourRepo)
	reviewHandler := handlers.NewReviewHandler(reviewRepo, tourService, ratingsService)
	bookingHandler := handlers.NewBookingHandler(bookingService, bookingRepo)

	app := fiber.New(fiber.Config{
		AppName:      "Natours API v1",
		ErrorHandler: middleware.ErrorHandler(cfg, log),
		BodyLimit:    bodyLimit,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, deps.Storage)

	protect := middleware.Protect(authService)

	// Health check & root routes
	app.Get("/", middleware.OptionalAuth(authService), healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Payment provider events carry their own signature
	app.Post("/webhook-checkout", bookingHandler.WebhookCheckout)

	apiV1 := app.Group("/api/v1")

	// User routes
	userRoutes := apiV1.Group("/users", middleware.NoStore())
	setupUserRoutes(userRoutes, authHandler, userHandler, protect, cfg, deps.Storage)

	// Tour routes, with the nested reviews of a tour
	tourRoutes := apiV1.Group("/tours")
	setupTourRoutes(tourRoutes, tourHandler, reviewHandler, protect)

	// Review routes
	reviewRoutes := apiV1.Group("/reviews")
	setupReviewRoutes(reviewRoutes, reviewHandler, protect)

	// Booking routes
	bookingRoutes := apiV1.Group("/booking", middleware.NoStore(), protect)
	setupBookingRoutes(bookingRoutes, bookingHandler)

	// Anything else
	app.Use(middleware.NotFound)

	return &App{
		Fiber:   app,
		Ratings: ratingsService,
		Cron:    cronService,
	}
}

func setupUserRoutes(
	router fiber.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	protect fiber.Handler,
	cfg *config.Config,
	storage fiber.Storage,
) {
	authLimit := middleware.AuthRateLimiter(cfg, storage)
	strictLimit := middleware.StrictRateLimiter(cfg, storage)

	// Public auth routes
	router.Post("/signup", authLimit, authHandler.Signup)
	router.Post("/login", authLimit, authHandler.Login)
	router.Get("/logout", authHandler.Logout)
	router.Post("/forgotPassword", strictLimit, authHandler.ForgotPassword)
	router.Patch("/resetPassword/:token", strictLimit, authHandler.ResetPassword)

	// Current user
	router.Patch("/updateMyPassword", protect, authHandler.UpdatePassword)
	router.Get("/me", protect, userHandler.GetMe)
	router.Patch("/updateMe", protect, userHandler.UpdateMe)
	router.Delete("/deleteMe", protect, userHandler.DeleteMe)

	// User management
	adminOnly := middleware.RestrictTo(domain.Roles(domain.RoleAdmin))
	router.Get("/", protect, middleware.RestrictTo(domain.Roles(domain.RoleAdmin, domain.RoleLeadGuide)), userHandler.ListUsers)
	router.Post("/", protect, adminOnly, userHandler.CreateUser)
	router.Get("/:id", protect, userHandler.GetUser)
	router.Patch("/:id", protect, adminOnly, userHandler.UpdateUser)
	router.Delete("/:id", protect, adminOnly, userHandler.DeleteUser)
}

func setupTourRoutes(router fiber.Router, tourHandler *handlers.TourHandler, reviewHandler *handlers.ReviewHandler, protect fiber.Handler) {
	staff := middleware.RestrictTo(domain.Roles(domain.RoleAdmin, domain.RoleLeadGuide))
	cache := middleware.PublicCache(tourCacheTTL)

	// Reports and aliases
	router.Get("/top-5-cheap", cache, tourHandler.AliasTopTours, tourHandler.ListTours)
	router.Get("/tour-stats", cache, tourHandler.GetTourStats)
	router.Get("/monthly-plan/:year", protect,
		middleware.RestrictTo(domain.Roles(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)),
		tourHandler.GetMonthlyPlan)
	router.Get("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.GetToursWithin)
	router.Get("/distances/:latlng/unit/:unit", tourHandler.GetDistances)

	// CRUD
	router.Get("/", cache, tourHandler.ListTours)
	router.Post("/", protect, staff, tourHandler.CreateTour)
	router.Get("/:id", tourHandler.GetTour)
	router.Patch("/:id", protect, staff, tourHandler.UpdateTour)
	router.Delete("/:id", protect, staff, tourHandler.DeleteTour)

	// Reviews of one tour
	router.Get("/:tourId/reviews", reviewHandler.ListReviews)
	router.Post("/:tourId/reviews", protect, middleware.RestrictTo(domain.Roles(domain.RoleUser)), reviewHandler.CreateReview)
}

func setupReviewRoutes(router fiber.Router, reviewHandler *handlers.ReviewHandler, protect fiber.Handler) {
	authors := middleware.RestrictTo(domain.Roles(domain.RoleUser, domain.RoleAdmin))

	router.Get("/", reviewHandler.ListReviews)
	router.Post("/", protect, middleware.RestrictTo(domain.Roles(domain.RoleUser)), reviewHandler.CreateReview)
	router.Get("/:id", reviewHandler.GetReview)
	router.Patch("/:id", protect, authors, reviewHandler.UpdateReview)
	router.Delete("/:id", protect, authors, reviewHandler.DeleteReview)
}

func setupBookingRoutes(router fiber.Router, bookingHandler *handlers.BookingHandler) {
	// Any signed in user
	router.Get("/checkout-session/:tourId", bookingHandler.GetCheckoutSession)
	router.Get("/my-tours", bookingHandler.GetMyTours)

	// Staff
	staff := middleware.RestrictTo(domain.Roles(domain.RoleAdmin, domain.RoleLeadGuide))
	router.Get("/", staff, bookingHandler.ListBookings)
	router.Post("/", staff, bookingHandler.CreateBooking)
	router.Get("/:id", staff, bookingHandler.GetBooking)
	router.Patch("/:id", staff, bookingHandler.UpdateBooking)
	router.Delete("/:id", staff, bookingHandler.DeleteBooking)
}
