package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/maziwacoop/settlement-engine/internal/config"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	"github.com/maziwacoop/settlement-engine/internal/service"
)

func main() {
	log.Println("Starting deduction scheduler...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	creditRepo := repository.NewCreditRepository(db)
	deductionRepo := repository.NewDeductionRepository(db)
	ledger := service.NewCreditLedger(creditRepo, redisClient, cfg)
	scheduler := service.NewRecurringDeductionScheduler(deductionRepo, ledger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone %q: %v", cfg.Scheduler.Timezone, err)
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	_, err = c.AddFunc(cfg.Scheduler.DeductionCronSpec, func() {
		runDue(scheduler, cfg.Scheduler.TriggeredBy)
	})
	if err != nil {
		log.Fatalf("Error scheduling recurring deduction job: %v", err)
	}

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Println("Scheduler stopped")
}

func runDue(scheduler *service.RecurringDeductionScheduler, triggeredBy string) {
	log.Println("Running recurring deduction job...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := scheduler.RunDue(ctx, triggeredBy)
	if err != nil {
		log.Printf("Recurring deduction run failed: %v", err)
		return
	}

	log.Printf("Recurring deduction run complete: applied=%d failed=%d", report.AppliedCount, report.FailedCount)
	for _, failure := range report.Errors {
		log.Printf("Deduction %s (farmer %s) failed: %s", failure.DeductionID, failure.FarmerID, failure.Reason)
	}
}
