package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/config"
	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/catalog"
	"github.com/deskhive/deskhive-api/internal/domain/credit"
	"github.com/deskhive/deskhive-api/internal/domain/gateway"
	"github.com/deskhive/deskhive-api/internal/domain/pass"
	"github.com/deskhive/deskhive-api/internal/domain/purchase"
	"github.com/deskhive/deskhive-api/internal/domain/refund"
	"github.com/deskhive/deskhive-api/internal/domain/user"
	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/database"
	"github.com/deskhive/deskhive-api/internal/pkg/jwt"
	"github.com/deskhive/deskhive-api/internal/pkg/logger"
	"github.com/deskhive/deskhive-api/internal/pkg/notifier"
	pkgresponse "github.com/deskhive/deskhive-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting DeskHive API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	var sender notifier.Sender
	if cfg.SendGridAPIKey != "" {
		sender = notifier.NewSendGridClient(notifier.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		})
	}
	notifierService := notifier.NewService(sender)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db)
	passRepo := pass.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	creditRepo := credit.NewRepository(db)
	refundRepo := refund.NewRepository(db)

	// ---------- Services ----------
	passService := pass.NewService(passRepo)
	purchaseNotifier := &purchaseNotifierAdapter{
		notifier: notifierService,
		users:    userRepo,
		packages: catalogRepo,
	}
	purchaseService := purchase.NewService(purchaseRepo, catalogRepo, passService, purchaseNotifier)
	bookingService := booking.NewService(bookingRepo, passService)
	creditService := credit.NewService(creditRepo)
	refundNotifier := &refundNotifierAdapter{notifier: notifierService, users: userRepo}
	refundService := refund.NewService(refundRepo, bookingRepo, creditService, refundNotifier, refund.Config{
		AutoApprove:    cfg.RefundAutoApprove,
		AllowRerequest: cfg.RefundAllowRerequest,
	})

	// ---------- Handlers ----------
	catalogHandler := catalog.NewHandler(catalogRepo)
	purchaseHandler := purchase.NewHandler(purchaseService)
	passHandler := pass.NewHandler(passService)
	bookingHandler := booking.NewHandler(bookingService)
	creditHandler := credit.NewHandler(creditService)
	refundHandler := refund.NewHandler(refundService)
	gatewayHandler := gateway.NewHandler(cfg.GatewayWebhookSecret, purchaseService, bookingService, redis)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()

	// ---------- Expiry sweeps ----------
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.PassSweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			passService.Sweep(ctx)
			creditService.Sweep(ctx)
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule expiry sweep")
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/packages", catalogHandler.Routes())
		r.Mount("/purchases", purchaseHandler.Routes(authMiddleware))
		r.Mount("/passes", passHandler.Routes(authMiddleware))
		r.Mount("/bookings", bookingHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/refunds", refundHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/purchases", purchaseHandler.AdminRoutes(authMiddleware, adminMiddleware))
		r.Mount("/refunds", refundHandler.AdminRoutes(authMiddleware, adminMiddleware))
	})

	r.Mount("/webhooks", gatewayHandler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// Adapter implementations to bridge interface mismatches

// purchaseNotifierAdapter resolves buyer email and package name before
// handing off to the notifier service.
type purchaseNotifierAdapter struct {
	notifier *notifier.Service
	users    user.Repository
	packages *catalog.Repository
}

func (a *purchaseNotifierAdapter) PurchaseCompleted(userID, packageID uuid.UUID, expiresAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("purchase notification skipped: user lookup failed")
		return
	}
	pkg, err := a.packages.GetByID(ctx, packageID)
	if err != nil {
		log.Warn().Err(err).Str("package_id", packageID.String()).Msg("purchase notification skipped: package lookup failed")
		return
	}
	a.notifier.PurchaseCompleted(u.Email, u.FullName, pkg.Name, expiresAt)
}

// refundNotifierAdapter resolves the user before handing off to the notifier
// service.
type refundNotifierAdapter struct {
	notifier *notifier.Service
	users    user.Repository
}

func (a *refundNotifierAdapter) RefundApproved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, expiresAt time.Time) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("refund notification skipped: user lookup failed")
		return
	}
	a.notifier.RefundApproved(u.Email, u.FullName, amount, expiresAt)
}

func (a *refundNotifierAdapter) RefundRejected(ctx context.Context, userID uuid.UUID, reason string) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("refund notification skipped: user lookup failed")
		return
	}
	a.notifier.RefundRejected(u.Email, u.FullName, reason)
}
