package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zenobundle/zenobundle-gobackend/internal/config"
	"github.com/zenobundle/zenobundle-gobackend/internal/db"
	"github.com/zenobundle/zenobundle-gobackend/internal/events"
	"github.com/zenobundle/zenobundle-gobackend/internal/handlers"
	"github.com/zenobundle/zenobundle-gobackend/internal/legacy"
	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/services"
	"github.com/zenobundle/zenobundle-gobackend/internal/zenopay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Criticalf("Configuration error: %v", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx := context.Background()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logging.Logger.Criticalf("Failed to connect to MongoDB: %v", err)
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logging.Logger.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	database := client.Database(cfg.MongoDB)

	txnService := services.NewTransactionService(database)
	voucherService := services.NewVoucherService(database)
	if err := txnService.EnsureIndexes(ctx); err != nil {
		logging.Logger.Errorf("Transaction index bootstrap failed: %v", err)
	}
	if err := voucherService.EnsureIndexes(ctx); err != nil {
		logging.Logger.Errorf("Voucher index bootstrap failed: %v", err)
	}

	// Optional side sinks: both disabled when unconfigured, both
	// best-effort at runtime.
	var mirror *legacy.Mirror
	if cfg.MySQLDSN != "" {
		mirror, err = legacy.Open(cfg.MySQLDSN)
		if err != nil {
			logging.Logger.Errorf("Legacy mirror unavailable, continuing without it: %v", err)
			mirror = nil
		}
	}
	var publisher *events.Publisher
	if cfg.KafkaBroker != "" {
		publisher = events.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer publisher.Close()
	}

	gateway := zenopay.NewClient(cfg.ZenoPayBaseURL, cfg.ZenoPayAPIKey)
	reconService := services.NewReconcileService(txnService, voucherService, gateway, mirror, publisher)

	paymentHandler := handlers.NewPaymentHandler(txnService, reconService, gateway, cfg.JWTSecret)
	webhookHandler := handlers.NewWebhookHandler(reconService, cfg.WebhookAPIKey)
	voucherHandler := handlers.NewVoucherHandler(voucherService, cfg.JWTSecret)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/order", paymentHandler.CreateOrder).Methods("POST")
	router.HandleFunc("/api/payment/webhook", webhookHandler.Receive).Methods("POST")
	router.HandleFunc("/status/{order_id}", paymentHandler.GetStatus).Methods("GET")

	router.HandleFunc("/api/transactions", paymentHandler.ListTransactions).Methods("GET")
	router.HandleFunc("/api/vouchers", voucherHandler.LoadVouchers).Methods("POST")
	router.HandleFunc("/api/vouchers", voucherHandler.ListVouchers).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		logging.Logger.Infof("Server running on port %s", cfg.Port)
		return server.ListenAndServe()
	})
	if err := g.Wait(); err != nil {
		logging.Logger.Criticalf("Server stopped: %v", err)
		os.Exit(1)
	}
}
