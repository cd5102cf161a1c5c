package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/radiancemd/inventory-backend/internal/inventory/events"
	"github.com/radiancemd/inventory-backend/internal/inventory/handler"
	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/config"
	"github.com/radiancemd/inventory-backend/pkg/database"
	"github.com/radiancemd/inventory-backend/pkg/httputil"
	"github.com/radiancemd/inventory-backend/pkg/logger"
	"github.com/radiancemd/inventory-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ. Events are best effort, so a missing broker
	// degrades to no events instead of blocking startup in development.
	var publisher *events.InventoryEventPublisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if cfg.Server.Environment == config.EnvProduction {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
	} else {
		defer rmq.Close()
		publisher, err = events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	lotRepo := repository.NewLotRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	alertEngine := service.NewAlertEngine(alertRepo, publisher,
		cfg.Inventory.ExpiringSoonDays, cfg.Inventory.ExpiryWarningDays, log)
	ledgerService := service.NewLedgerService(lotRepo, productRepo, txnRepo, alertEngine, publisher, log)
	deductionService := service.NewDeductionService(lotRepo, productRepo, txnRepo, alertEngine, publisher,
		cfg.Inventory.DeductionRetries, log)
	levelService := service.NewLevelService(lotRepo, productRepo, log)
	alertService := service.NewAlertService(alertRepo, log)

	// Start expiry sweeper
	sweeper := service.NewExpirySweeper(lotRepo, productRepo, txnRepo, alertEngine,
		cfg.Inventory.SweepInterval, cfg.Inventory.ExpiringSoonDays, log)
	sweeper.Start()

	// Initialize handlers
	lotHandler := handler.NewLotHandler(ledgerService, log)
	deductionHandler := handler.NewDeductionHandler(deductionService, log)
	levelHandler := handler.NewLevelHandler(levelService, log)
	txnHandler := handler.NewTransactionHandler(ledgerService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Actor)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Email"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Post("/", lotHandler.Receive)
			r.Get("/{id}", lotHandler.Get)
			r.Post("/{id}/adjust", lotHandler.Adjust)
			r.Post("/{id}/quarantine", lotHandler.Quarantine)
			r.Post("/{id}/open", lotHandler.Open)
			r.Get("/{id}/transactions", lotHandler.History)
			r.Get("/{id}/recall-trace", lotHandler.RecallTrace)
		})

		// Product-scoped routes
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/lots", lotHandler.ListByProduct)
			r.Get("/level", levelHandler.Get)
			r.Get("/transactions", txnHandler.ListByProduct)
		})

		// Deduction routes
		r.Post("/deductions", deductionHandler.Deduct)
		r.Post("/deductions/batch", deductionHandler.DeductBatch)

		// Level and reporting routes
		r.Get("/levels", levelHandler.List)
		r.Get("/levels/reorder", levelHandler.ListBelowReorder)
		r.Get("/valuation", levelHandler.Valuation)

		// Patient usage (recall traceability)
		r.Get("/patients/{patientID}/usage", txnHandler.ListByPatient)

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Get("/active", alertHandler.ListActive)
			r.Get("/{id}", alertHandler.Get)
			r.Put("/{id}/acknowledge", alertHandler.Acknowledge)
			r.Put("/{id}/resolve", alertHandler.Resolve)
			r.Put("/{id}/notification-sent", alertHandler.MarkNotified)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop background work before closing connections
	sweeper.Stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
