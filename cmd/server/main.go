package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/app"
	"github.com/cohere/backend/internal/config"
	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/handler"
	"github.com/cohere/backend/internal/metrics"
	appMiddleware "github.com/cohere/backend/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		logrus.Fatalf("logger error: %v", err)
	}
	log := logger.WithField("service", "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.Close()

	metrics.Register()

	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"mongo":    func(ctx context.Context) error { return a.Mongo.Client().Ping(ctx, nil) },
		"postgres": a.DB.Ping,
		"cache":    a.Cache.Ping,
	})
	plansHandler := handler.NewPlansHandler()
	paymentHandler := handler.NewPaymentHandler(a.Purchases, a.Gateway, log)
	contributionHandler := handler.NewContributionHandler(a.Contributions, a.Purchases, a.Slots)
	couponHandler := handler.NewCouponHandler(a.Coupons)
	paidTierHandler := handler.NewPaidTierHandler(a.PaidTier)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(appMiddleware.Recovery(log))
	r.Use(appMiddleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 20 req/sec per IP, burst of 40
	r.Use(appMiddleware.NewRateLimiter(ctx, 20, 40).Middleware())

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/plans", plansHandler.List)
	r.Post("/api/payment/webhook", paymentHandler.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(a.Auth))

		r.Get("/api/contributions/{id}", contributionHandler.Get)
		r.Get("/api/contributions/{id}/access", contributionHandler.Access)
		r.Get("/api/contributions/{id}/slots", contributionHandler.ListSlots)
		r.Post("/api/contributions/{id}/slots/book", contributionHandler.Book)

		r.With(appMiddleware.CouponRateLimiter(ctx)).Post("/api/coupons/validate", couponHandler.Validate)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireRole(domain.RoleCohealer))
			r.Post("/api/contributions", contributionHandler.Create)
			r.Put("/api/contributions/{id}/schedule", contributionHandler.SetSchedule)
			r.Get("/api/coupons", couponHandler.List)
			r.Post("/api/coupons", couponHandler.Create)
			r.Patch("/api/coupons/{id}", couponHandler.Update)
			r.Delete("/api/coupons/{id}", couponHandler.Delete)
			r.Get("/api/paid-tier", paidTierHandler.Current)
		})

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Post("/api/admin/paid-tier", paidTierHandler.Grant)
		})
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.Infof("cohere backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
