package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/maziwacoop/settlement-engine/internal/config"
	"github.com/maziwacoop/settlement-engine/internal/handler"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	"github.com/maziwacoop/settlement-engine/internal/service"
	"github.com/maziwacoop/settlement-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	creditRepo := repository.NewCreditRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	deductionRepo := repository.NewDeductionRepository(db)

	// Initialize services
	ledger := service.NewCreditLedger(creditRepo, redisClient, cfg)
	calculator := service.NewVarianceCalculator(cfg.GetPenaltyRatePerLiter())
	approval := service.NewBatchApprovalService(collectionRepo, calculator)
	netting := service.NewPaymentNettingService(collectionRepo, ledger)
	scheduler := service.NewRecurringDeductionScheduler(deductionRepo, ledger)

	settlementHandler := handler.NewSettlementHandler(ledger, approval, netting, scheduler)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(settlementHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(settlementHandler *handler.SettlementHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/approvals/batch", settlementHandler.ApproveBatch).Methods("POST")
	api.HandleFunc("/farmers/{farmerId}/settlement", settlementHandler.Settle).Methods("POST")
	api.HandleFunc("/collections/{collectionId}/settlement", settlementHandler.SettleCollection).Methods("POST")
	api.HandleFunc("/deductions/run", settlementHandler.RunDeductions).Methods("POST")
	api.HandleFunc("/farmers/{farmerId}/credit", settlementHandler.GetCreditProfile).Methods("GET")
	api.HandleFunc("/farmers/{farmerId}/credit/transactions", settlementHandler.GetCreditTransactions).Methods("GET")
	api.HandleFunc("/farmers/{farmerId}/credit/audit", settlementHandler.AuditLedger).Methods("GET")
	api.HandleFunc("/farmers/{farmerId}/credit/freeze", settlementHandler.Freeze).Methods("POST")
	api.HandleFunc("/farmers/{farmerId}/credit/unfreeze", settlementHandler.Unfreeze).Methods("POST")

	return router
}
