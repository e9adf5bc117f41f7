package main

import (
	"context"
	"time"

	"urut/internal/bookings/handler"
	"urut/internal/bookings/lifecycle"
	"urut/internal/bookings/repository"
	"urut/internal/bookings/service"
	"urut/internal/bookings/timer"
	"urut/internal/bookings/transaction"
	"urut/internal/bookings/validator"
	"urut/pkg/app"
	"urut/pkg/config"
	"urut/pkg/events"
	"urut/pkg/resilience"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	// Log all configuration values
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Bookings service")
	cfg.SetMongo()

	sink := initSink(cfg)
	bookingService, timers := initServices(cfg, sink)

	recoverState(cfg, bookingService)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runOverdueSweep(sweepCtx, cfg, bookingService)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewBookingHandler(bookingService, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.OnShutdown(func() {
		stopSweep()
		// Quiesce keeps the timer checkpoint so the next start resumes
		// the countdown. Stop would clear it and strand the deadline.
		timers.Quiesce("service shutting down")
	})
	serverApp.AfterShutdown(func() {
		if err := sink.Close(); err != nil {
			cfg.Log.Error("failed to close event sink", "error", err)
		}
		cfg.GracefulShutdown()
	})
	serverApp.Run()
}

func initSink(cfg *config.Config) events.Sink {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("No Kafka brokers configured, booking events disabled")
		return events.NoopSink{}
	}
	return events.NewKafkaSink(cfg.KafkaBrokers, cfg.EventsTopic, ServiceName, cfg.Log)
}

func initServices(cfg *config.Config, sink events.Sink) (*service.BookingService, *timer.Manager) {
	executor := resilienceExecutor(cfg)

	bookingRepo := repository.NewMongoBookingRepository(cfg, executor)
	commissionRepo := repository.NewMongoCommissionRepository(cfg, executor)
	checkpointRepo := repository.NewMongoCheckpointRepository(cfg, executor)

	timers := timer.NewManager(checkpointRepo, sink, cfg.Log)

	bookingService := service.NewBookingService(
		validator.NewBookingValidator(cfg.Log),
		transaction.NewOrchestrator(bookingRepo, cfg.Log),
		lifecycle.NewMachine(bookingRepo, commissionRepo, sink, cfg.Log),
		timers,
		bookingRepo,
		commissionRepo,
		sink,
		cfg.Log,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, timers
}

func resilienceExecutor(cfg *config.Config) *resilience.Executor {
	return resilience.NewExecutor(resilience.Settings{
		Name:             "booking-store",
		MaxAttempts:      cfg.RetryMaxAttempts,
		BaseDelay:        cfg.RetryBaseDelay,
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, cfg.Log)
}

// runOverdueSweep periodically settles bookings whose deadline passed
// without a live countdown firing, for example after a failed timer start.
func runOverdueSweep(ctx context.Context, cfg *config.Config, bookingService *service.BookingService) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			settled, err := bookingService.ExpireOverdue(sweepCtx)
			cancel()
			if err != nil {
				cfg.Log.Error("overdue sweep failed", "error", err)
			} else if settled > 0 {
				cfg.Log.Info("overdue sweep settled bookings", "count", settled)
			}
		}
	}
}

// recoverState settles any deadlines that passed while the process was down
// and resumes the persisted countdown, so restarts never strand a booking
// in an active status.
func recoverState(cfg *config.Config, bookingService *service.BookingService) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settled, err := bookingService.ExpireOverdue(ctx)
	if err != nil {
		cfg.Log.Error("startup overdue sweep failed", "error", err)
	} else if settled > 0 {
		cfg.Log.Info("startup overdue sweep settled bookings", "count", settled)
	}

	if err := bookingService.Resume(ctx); err != nil {
		cfg.Log.Error("failed to resume countdown from checkpoint", "error", err)
	}
}
