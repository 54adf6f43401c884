package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/app"
	"github.com/cohere/backend/internal/config"
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
	log := logger.WithField("service", "cron")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.Close()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(cfg.ReconcileSchedule, func() {
		since := time.Now().Add(-cfg.ReconcileLookback)
		start := time.Now()
		changed, err := a.Purchases.ReconcilePending(ctx, since)
		entry := log.WithFields(logrus.Fields{
			"since":       since,
			"changed":     changed,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Error("reconcile pending payments failed")
			return
		}
		entry.Info("reconciled pending payments")
	})
	if err != nil {
		log.Fatalf("invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
	}

	c.Start()
	log.Infof("reconcile job scheduled: %s", cfg.ReconcileSchedule)

	<-ctx.Done()
	log.Info("shutting down")
	<-c.Stop().Done()
}
