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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cataloghandler "github.com/djiba142/Pharmacie-sub000/internal/catalog/handler"
	catalogrepo "github.com/djiba142/Pharmacie-sub000/internal/catalog/repository"
	hierarchyhandler "github.com/djiba142/Pharmacie-sub000/internal/hierarchy/handler"
	hierarchyrepo "github.com/djiba142/Pharmacie-sub000/internal/hierarchy/repository"
	orderevents "github.com/djiba142/Pharmacie-sub000/internal/orders/events"
	orderhandler "github.com/djiba142/Pharmacie-sub000/internal/orders/handler"
	orderrepo "github.com/djiba142/Pharmacie-sub000/internal/orders/repository"
	orderservice "github.com/djiba142/Pharmacie-sub000/internal/orders/service"
	reportinghandler "github.com/djiba142/Pharmacie-sub000/internal/reporting/handler"
	reportingrepo "github.com/djiba142/Pharmacie-sub000/internal/reporting/repository"
	reportingservice "github.com/djiba142/Pharmacie-sub000/internal/reporting/service"
	stockevents "github.com/djiba142/Pharmacie-sub000/internal/stock/events"
	stockhandler "github.com/djiba142/Pharmacie-sub000/internal/stock/handler"
	stockrepo "github.com/djiba142/Pharmacie-sub000/internal/stock/repository"
	stockservice "github.com/djiba142/Pharmacie-sub000/internal/stock/service"
	"github.com/djiba142/Pharmacie-sub000/pkg/actor"
	"github.com/djiba142/Pharmacie-sub000/pkg/config"
	"github.com/djiba142/Pharmacie-sub000/pkg/database"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("pharmacie-core", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// RabbitMQ is optional in development: without a broker the service
	// runs with event publishing disabled.
	var (
		rmq            *messaging.RabbitMQ
		stockPublisher *messaging.Publisher
		orderPublisher *messaging.Publisher
	)
	rmq, err = messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if cfg.Server.Environment == config.EnvDevelopment {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
			rmq = nil
		} else {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
	}
	if rmq != nil {
		defer rmq.Close()
		stockPublisher, err = messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "pharmacie-core", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create stock publisher")
		}
		orderPublisher, err = messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, "pharmacie-core", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create order publisher")
		}
	}

	// Repositories
	entityRepo := hierarchyrepo.NewEntityRepository(db)
	medicamentRepo := catalogrepo.NewMedicamentRepository(db)
	lotRepo := catalogrepo.NewLotRepository(db)
	stockRepo := stockrepo.NewStockRepository(db)
	orderRepo := orderrepo.NewOrderRepository(db)
	rollupRepo := reportingrepo.NewRollupRepository(db)

	// Services
	stockSvc := stockservice.NewStockService(
		stockRepo, entityRepo, lotRepo,
		stockevents.NewPublisher(stockPublisher, log),
		cfg.Stock.MovementRetries, log,
	)
	orderSvc := orderservice.NewOrderService(
		orderRepo, entityRepo,
		orderevents.NewPublisher(orderPublisher, log),
		log,
	)
	rollupSvc := reportingservice.NewRollupService(entityRepo, rollupRepo, log)

	// Handlers
	entityHandler := hierarchyhandler.NewEntityHandler(entityRepo, log)
	catalogHandler := cataloghandler.NewCatalogHandler(medicamentRepo, lotRepo, stockPublisher, log)
	stockHandler := stockhandler.NewStockHandler(stockSvc, log)
	ordersHandler := orderhandler.NewOrderHandler(orderSvc, log)
	rollupHandler := reportinghandler.NewRollupHandler(rollupSvc, log)

	scanner := stockservice.NewExpiryScanner(lotRepo, stockPublisher,
		cfg.Stock.ExpiryScanWindow, cfg.Stock.ExpiryScanAt, log)
	if err := scanner.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start expiry scanner")
	}
	defer scanner.Stop()

	resolver := actor.NewResolver(&cfg.Auth)
	rateLimiter := httputil.NewRateLimiter(100, 200)
	defer rateLimiter.Stop()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Metrics)
	r.Use(rateLimiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		health := map[string]interface{}{
			"status":   "up",
			"database": db.Health(req.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(resolver.Middleware)

		r.Route("/entities", func(r chi.Router) {
			r.Post("/", entityHandler.Create)
			r.Get("/{id}", entityHandler.Get)
			r.Get("/{id}/children", entityHandler.ListChildren)
			r.Get("/{id}/subtree", entityHandler.ListSubtree)
			r.Get("/{id}/orders", ordersHandler.ListByEntity)
			r.Delete("/{id}", entityHandler.Deactivate)
		})

		r.Route("/medicaments", func(r chi.Router) {
			r.Post("/", catalogHandler.CreateMedicament)
			r.Get("/", catalogHandler.ListMedicaments)
			r.Get("/{id}", catalogHandler.GetMedicament)
			r.Delete("/{id}", catalogHandler.DeactivateMedicament)
			r.Get("/{id}/lots", catalogHandler.ListLotsByMedicament)
		})

		r.Route("/lots", func(r chi.Router) {
			r.Post("/", catalogHandler.CreateLot)
			r.Get("/{id}", catalogHandler.GetLot)
			r.Post("/{id}/recall", catalogHandler.RecallLot)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/movements", stockHandler.RecordMovement)
			r.Get("/entities/{entityID}", stockHandler.ListEntityStock)
			r.Route("/entities/{entityID}/lots/{lotID}", func(r chi.Router) {
				r.Get("/", stockHandler.GetStockRecord)
				r.Put("/thresholds", stockHandler.UpdateThresholds)
				r.Get("/movements", stockHandler.ListMovements)
				r.Get("/replay", stockHandler.VerifyReplay)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordersHandler.Create)
			r.Get("/{id}", ordersHandler.Get)
			r.Post("/{id}/transition", ordersHandler.Transition)
			r.Get("/{id}/actions", ordersHandler.AvailableActions)
		})

		r.Get("/reporting/entities/{entityID}/rollup", rollupHandler.Rollup)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
