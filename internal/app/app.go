// Package app wires the API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/checkout"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/review"
	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/internal/handler"
	"github.com/xenking/foodcart/internal/notify"
	"github.com/xenking/foodcart/internal/repository"
	"github.com/xenking/foodcart/pkg/health"
	"github.com/xenking/foodcart/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. *app.Telemetry from the
// go-faster SDK satisfies it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Domain services.
	catalogSvc := catalog.NewService(catalogRepo)
	couponValidator := coupon.NewRepoValidator(couponRepo)
	couponSvc := coupon.NewService(couponRepo, nil)
	cartSvc := cart.NewService(repository.NewCartStore(pool), catalogSvc, couponValidator)
	orderSvc, err := order.NewService(orderRepo, catalogRepo, couponValidator, couponSvc,
		m.MeterProvider().Meter("foodcart/order"))
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	events := notify.NewHub(lg.Named("notify"))
	orderSvc.SetNotifier(events)
	checkoutSvc := checkout.NewService(cartSvc, orderSvc)
	paymentSvc := payment.NewService(repository.NewPaymentRepository(pool), orderSvc)
	reviewSvc := review.NewService(repository.NewReviewRepository(pool), orderSvc)

	h := handler.New(ctx, handler.Config{
		VerifyLimit:  cfg.RateLimit.Max,
		VerifyWindow: cfg.RateLimit.Window,
	}, handler.Deps{
		Catalog:  catalogSvc,
		Carts:    cartSvc,
		Coupons:  couponSvc,
		Verifier: couponValidator,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		Reviews:  reviewSvc,
		Events:   events,
		Tokens:   session.NewIssuer([]byte(cfg.SessionSecret)),
	})

	router := chi.NewRouter()
	healthSvc.Mount(router)
	h.Mount(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Routes(),
			httpmiddleware.Instrument("foodcart-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
