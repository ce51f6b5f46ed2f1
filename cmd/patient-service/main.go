package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KashishBagga/pamm/pkg/audit"
	"github.com/KashishBagga/pamm/pkg/common/config"
	"github.com/KashishBagga/pamm/pkg/common/database"
	"github.com/KashishBagga/pamm/pkg/common/kafka"
	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/common/middleware"
	"github.com/KashishBagga/pamm/pkg/crypto"
	"github.com/KashishBagga/pamm/pkg/observability/metrics"
	"github.com/KashishBagga/pamm/pkg/patient"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	keyring, err := crypto.NewKeyring(cfg.EncryptionKey)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid ENCRYPTION_KEY")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	patientRepo := patient.NewRepository(db)
	if err := patientRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate patient tables")
	}

	auditRepo := audit.NewRepository(db)
	if err := auditRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit tables")
	}

	sanitizer, err := audit.NewSanitizer(audit.DefaultRules())
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to compile audit sanitizer rules")
	}

	var producer *kafka.Producer
	if cfg.AuditKafkaTopic != "" {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.AuditKafkaTopic)
		defer producer.Close()
	}
	recorder := audit.NewRecorder(auditRepo, producer, sanitizer)

	policy, err := patient.LoadPolicy(cfg.UploadPolicyFile)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.UploadPolicyFile).Warn("upload policy not loaded, using defaults")
		policy = patient.DefaultPolicy()
	}
	if cfg.UploadMaxRows > 0 {
		policy.MaxRows = cfg.UploadMaxRows
	}
	validator := patient.NewRowValidator(policy)

	reports := patient.NewReportStore(database.GetRedis(cfg), cfg.UploadReportTTL)

	service := patient.NewService(patientRepo, keyring, recorder, validator)
	uploader := patient.NewUploader(patientRepo, keyring, recorder, validator, reports, policy.MaxRows)

	patientHandler := patient.NewHTTPHandler(service, uploader, reports, cfg.MaxRequestBody)
	auditHandler := audit.NewHTTPHandler(auditRepo)

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Recovery, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Identity, middleware.RequireRole(middleware.RoleManager, middleware.RoleAdmin))
	auditHandler.Register(api)
	patientHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Patient Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Patient Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Patient Service stopped")
}
